package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clausecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(25<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "./data", cfg.Store.Path)
	assert.Equal(t, "http://localhost:8081", cfg.Extractor.PDFServiceURL)
	assert.Equal(t, 60*time.Second, cfg.Extractor.Timeout)
	assert.False(t, cfg.Watcher.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.Settle)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: 127.0.0.1:9000
  read_timeout: 5s
  max_upload_bytes: 1048576
store:
  driver: memory
watcher:
  enabled: true
  dir: /srv/inbox
  extensions: [".pdf", ".docx"]
ingest:
  workers: 2
log:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Watcher.Enabled)
	assert.Equal(t, "/srv/inbox", cfg.Watcher.Dir)
	assert.Equal(t, []string{".pdf", ".docx"}, cfg.Watcher.Extensions)
	assert.Equal(t, 2, cfg.Ingest.Workers)
	assert.Equal(t, "console", cfg.Log.Format)

	// untouched sections keep defaults
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
store:
  driver: sqlite
  path: /var/lib/clausecheck
`)

	t.Setenv("CLAUSECHECK_SERVER_ADDR", ":7000")
	t.Setenv("CLAUSECHECK_SERVER_MAX_UPLOAD_BYTES", "2048")
	t.Setenv("CLAUSECHECK_EXTRACTOR_PDF_SERVICE_URL", "http://pdf:8081")
	t.Setenv("CLAUSECHECK_WATCHER_SETTLE", "2s")
	t.Setenv("CLAUSECHECK_INGEST_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, int64(2048), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "/var/lib/clausecheck", cfg.Store.Path)
	assert.Equal(t, "http://pdf:8081", cfg.Extractor.PDFServiceURL)
	assert.Equal(t, 2*time.Second, cfg.Watcher.Settle)
	assert.Equal(t, 8, cfg.Ingest.Workers)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"unknown driver", "store:\n  driver: mongo\n", "unknown store driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "dsn required"},
		{"bad log level", "log:\n  level: loud\n", "invalid log level"},
		{"bad log format", "log:\n  format: xml\n", "invalid log format"},
		{"too many workers", "ingest:\n  workers: 1000\n", "invalid ingest workers"},
		{"extension without dot", "watcher:\n  extensions: [pdf]\n", "must start with a dot"},
		{"malformed yaml", "server: [", "failed to load config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_NormalisesStoreDriver(t *testing.T) {
	cfg, err := Load(writeConfig(t, "store:\n  driver: \" SQLite \"\n"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)

	t.Setenv("CLAUSECHECK_STORE_DRIVER", "Memory")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestLoad_FileTooLarge(t *testing.T) {
	path := writeConfig(t, "# "+strings.Repeat("x", maxConfigFileSize))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"CLAUSECHECK_SERVER_ADDR":               "server.addr",
		"CLAUSECHECK_SERVER_MAX_UPLOAD_BYTES":   "server.max_upload_bytes",
		"CLAUSECHECK_EXTRACTOR_PDF_SERVICE_URL": "extractor.pdf_service_url",
		"CLAUSECHECK_DEBUG":                     "debug",
	}
	for in, want := range cases {
		assert.Equal(t, want, envKey(in), in)
	}
}
