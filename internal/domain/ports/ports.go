// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions, never on concrete adapters.
package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
)

// ErrNotFound is returned by repositories when a contract does not exist.
var ErrNotFound = errors.New("contract not found")

// DocumentParser extracts text from one family of document formats.
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf", "docx").
	SupportedFormats() []string
}

// TextExtractor turns an uploaded file into plain text, choosing a parser
// by MIME type. Line endings in the returned text are normalised to "\n".
type TextExtractor interface {
	Extract(ctx context.Context, upload entities.Upload) (string, error)

	// ContentType returns the MIME type the upload would be extracted as.
	ContentType(upload entities.Upload) string

	// SupportedTypes returns the MIME types accepted for extraction.
	SupportedTypes() []string
}

// ContractRepository persists contracts and their clauses.
type ContractRepository interface {
	// SaveContract inserts or updates the contract and replaces its clause
	// set in one atomic step.
	SaveContract(ctx context.Context, contract entities.Contract, clauses []entities.Clause) error

	// GetContract returns ErrNotFound when no contract has the id.
	GetContract(ctx context.Context, id string) (*entities.Contract, error)

	// FindByHash returns ErrNotFound when no contract has the content hash.
	FindByHash(ctx context.Context, hash string) (*entities.Contract, error)

	// ListContracts returns contracts newest first.
	ListContracts(ctx context.Context) ([]entities.Contract, error)

	// ListClauses returns the clauses of a contract ordered by index.
	ListClauses(ctx context.Context, contractID string) ([]entities.Clause, error)

	// DeleteContract removes a contract and its clauses.
	DeleteContract(ctx context.Context, id string) error
}

// DocumentLoader reads contract files from disk.
type DocumentLoader interface {
	// Load reads the file at path and detects its MIME type.
	Load(ctx context.Context, path string) (*entities.Upload, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// ClauseExporter writes a contract and its clauses in some file format.
type ClauseExporter interface {
	Export(w io.Writer, contract entities.Contract, clauses []entities.Clause) error
	ContentType() string
	FileExtension() string
}

// IngestMetrics observes the pipeline. Implementations must be safe for
// concurrent use.
type IngestMetrics interface {
	ObserveSegmentation(tier string, clauses int, elapsed time.Duration)
	ObserveIngest(outcome string)
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}
