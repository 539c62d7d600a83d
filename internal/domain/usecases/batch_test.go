package usecases

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// mockLoader implements ports.DocumentLoader for testing
type mockLoader struct {
	mu       sync.Mutex
	files    map[string]string
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (m *mockLoader) Load(ctx context.Context, path string) (*entities.Upload, error) {
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	body, ok := m.files[path]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("open %s: no such file", path)
	}
	return &entities.Upload{FileName: path, MIMEType: "text/plain", Data: []byte(body), Source: "file"}, nil
}

func (m *mockLoader) SupportedExtensions() []string {
	return []string{".txt"}
}

func TestIngestFiles(t *testing.T) {
	loader := &mockLoader{files: map[string]string{
		"a.txt": "1. A.\n2. B.",
		"b.txt": "Para.\n\nPara two.",
		"c.txt": "Only one.",
	}}
	repo := newMockRepo()
	uc, _ := newTestIngest(&mockExtractor{}, repo)

	results, err := uc.IngestFiles(context.Background(), loader, []string{"a.txt", "missing.txt", "b.txt", "c.txt"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "a.txt", results[0].Path)
	require.NoError(t, results[0].Err)
	assert.Len(t, results[0].Result.Clauses, 2)

	assert.Equal(t, "missing.txt", results[1].Path)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Result)

	require.NoError(t, results[2].Err)
	require.NoError(t, results[3].Err)
	assert.Equal(t, 3, repo.count())
}

func TestIngestFiles_ConcurrentDuplicates(t *testing.T) {
	loader := &mockLoader{files: map[string]string{
		"a.txt":         "1. Same.\n2. Body.",
		"copy-of-a.txt": "1. Same.\n2. Body.",
	}}
	repo := newMockRepo()

	// Both files pass the hash lookup before either is stored.
	var arrived sync.WaitGroup
	arrived.Add(2)
	ext := &mockExtractor{extractFn: func(data []byte, _, _ string) (string, error) {
		arrived.Done()
		arrived.Wait()
		return string(data), nil
	}}
	uc, metrics := newTestIngest(ext, repo)

	results, err := uc.IngestFiles(context.Background(), loader, []string{"a.txt", "copy-of-a.txt"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err, r.Path)
	}

	assert.Equal(t, 1, repo.count())
	assert.Equal(t, results[0].Result.Contract.ID, results[1].Result.Contract.ID)
	assert.NotEqual(t, results[0].Result.Deduplicated, results[1].Result.Deduplicated)
	assert.ElementsMatch(t, []string{OutcomeStored, OutcomeDeduplicated}, metrics.outcomes)
}

func TestIngestFiles_BoundedConcurrency(t *testing.T) {
	files := make(map[string]string)
	var paths []string
	for i := 0; i < 12; i++ {
		p := fmt.Sprintf("f%02d.txt", i)
		files[p] = fmt.Sprintf("Contract number %d.", i)
		paths = append(paths, p)
	}
	loader := &mockLoader{files: files, delay: 5 * time.Millisecond}
	uc, _ := newTestIngest(&mockExtractor{}, newMockRepo())

	results, err := uc.IngestFiles(context.Background(), loader, paths, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, loader.peak.Load(), int32(3))
}

func TestIngestFiles_CanceledContext(t *testing.T) {
	loader := &mockLoader{files: map[string]string{"a.txt": "x"}}
	repo := newMockRepo()
	uc, _ := newTestIngest(&mockExtractor{}, repo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := uc.IngestFiles(ctx, loader, []string{"a.txt"}, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.Equal(t, 0, repo.count())
}

func TestFollow(t *testing.T) {
	loader := &mockLoader{files: map[string]string{
		"inbox/nda.txt": "1. Confidentiality.\n2. Term.",
	}}
	repo := newMockRepo()
	uc, _ := newTestIngest(&mockExtractor{}, repo)

	events := make(chan ports.FileEvent, 4)
	events <- ports.FileEvent{Path: "inbox/nda.txt", Operation: ports.FileCreated}
	events <- ports.FileEvent{Path: "inbox/gone.txt", Operation: ports.FileModified}
	events <- ports.FileEvent{Path: "inbox/nda.txt", Operation: ports.FileDeleted}
	close(events)

	err := uc.Follow(context.Background(), loader, events)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count())
}

func TestFollow_StopsOnCancel(t *testing.T) {
	uc, _ := newTestIngest(&mockExtractor{}, newMockRepo())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- uc.Follow(ctx, &mockLoader{}, make(chan ports.FileEvent))
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Follow did not return after cancel")
	}
}
