// Package loader reads contract files from disk for ingestion.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wolverine5550/clausecheck/internal/adapters/parser"
	"github.com/wolverine5550/clausecheck/internal/domain/entities"
)

// DefaultExtensions are the contract formats picked up from disk.
var DefaultExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md"}

// DefaultMaxBytes caps the size of a single file.
const DefaultMaxBytes = 25 << 20

var (
	// ErrUnsupportedExtension is returned for files outside the configured extensions.
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	// ErrTooLarge is returned for files above the size limit.
	ErrTooLarge = errors.New("file exceeds size limit")
)

// FileLoader implements ports.DocumentLoader for the local filesystem.
type FileLoader struct {
	exts     map[string]bool
	maxBytes int64
}

// NewFileLoader creates a loader accepting the given extensions (with dot,
// any case). No extensions means DefaultExtensions; maxBytes <= 0 means
// DefaultMaxBytes.
func NewFileLoader(extensions []string, maxBytes int64) *FileLoader {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[normalizeExt(e)] = true
	}
	return &FileLoader{exts: exts, maxBytes: maxBytes}
}

// Load reads the file at path.
func (l *FileLoader) Load(ctx context.Context, path string) (*entities.Upload, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !l.exts[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	data, err := io.ReadAll(io.LimitReader(file, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("%w: %s grew while reading", ErrTooLarge, path)
	}

	return &entities.Upload{
		FileName: filepath.Base(path),
		MIMEType: parser.MIMETypeByExt(ext),
		Data:     data,
		Source:   "file",
	}, nil
}

// SupportedExtensions returns the accepted extensions, sorted.
func (l *FileLoader) SupportedExtensions() []string {
	exts := make([]string, 0, len(l.exts))
	for ext := range l.exts {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Expand turns a mix of files and directories into a sorted list of files.
// Directories are walked recursively and only files with a supported
// extension are kept; hidden entries are skipped. Files named explicitly are
// kept as given so that Load can report why they are rejected.
func (l *FileLoader) Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != root && strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.IsDir() && l.exts[strings.ToLower(filepath.Ext(p))] {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Strings(out)
	return out, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
