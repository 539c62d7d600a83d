// Package entities contains the core business entities of contract review.
// These are pure domain objects with no knowledge of storage, transport or extraction.
package entities

import (
	"path/filepath"
	"strings"
	"time"
)

// Upload is a contract file as received from a client, the inbox folder or
// the CLI. The bytes are only held long enough to extract text; they are
// never persisted.
type Upload struct {
	FileName string
	MIMEType string
	Data     []byte
	Source   string // "http", "watcher", "cli"
}

// Ext returns the lower-cased file extension including the dot.
func (u Upload) Ext() string {
	return strings.ToLower(filepath.Ext(u.FileName))
}

// Contract is an uploaded contract and the outcome of processing it.
type Contract struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	MIMEType    string    `json:"mime_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ContentHash string    `json:"content_hash"`
	RawText     *string   `json:"raw_text"` // nil when extraction failed
	Warning     string    `json:"warning,omitempty"`
	Tier        string    `json:"tier,omitempty"` // "numbered", "paragraph" or empty
	ClauseCount int       `json:"clause_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// HasText reports whether text was extracted from the contract.
func (c Contract) HasText() bool {
	return c.RawText != nil
}

// Clause is a persisted clause of a contract. Index is zero-based and
// follows reading order.
type Clause struct {
	ID         string    `json:"id,omitempty"`
	ContractID string    `json:"contract_id,omitempty"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// Segmentation is the result of segmenting text without storing it.
type Segmentation struct {
	Tier    string   `json:"tier"`
	Clauses []Clause `json:"clauses"`
}

// ContractDetail is a contract together with its clauses in order.
type ContractDetail struct {
	Contract Contract `json:"contract"`
	Clauses  []Clause `json:"clauses"`
}

// IngestResult describes what happened to one upload.
type IngestResult struct {
	Contract     Contract
	Clauses      []Clause
	Extracted    bool
	Deduplicated bool
	Warning      string
}
