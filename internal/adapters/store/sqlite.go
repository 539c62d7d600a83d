package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// SQLiteStore implements ports.ContractRepository on a local SQLite file.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
}

// NewSQLiteStore opens (or creates) contracts.db under dataPath.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "contracts.db")
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		dataPath: dataPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL,
		raw_text TEXT,
		warning TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT '',
		clause_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at DATETIME NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_content_hash ON contracts(content_hash);
	CREATE TABLE IF NOT EXISTS clauses (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		clause_index INTEGER NOT NULL,
		clause_text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		UNIQUE (contract_id, clause_index)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveContract upserts the contract and replaces its clauses in one transaction.
func (s *SQLiteStore) SaveContract(ctx context.Context, c entities.Contract, clauses []entities.Clause) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contracts (id, file_name, mime_type, size_bytes, content_hash, raw_text, warning, tier, clause_count, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name = excluded.file_name,
			mime_type = excluded.mime_type,
			size_bytes = excluded.size_bytes,
			content_hash = excluded.content_hash,
			raw_text = excluded.raw_text,
			warning = excluded.warning,
			tier = excluded.tier,
			clause_count = excluded.clause_count,
			uploaded_at = excluded.uploaded_at
	`, c.ID, c.FileName, c.MIMEType, c.SizeBytes, c.ContentHash, nullString(c.RawText),
		c.Warning, c.Tier, c.ClauseCount, c.UploadedAt)
	if err != nil {
		return fmt.Errorf("upserting contract: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM clauses WHERE contract_id = ?", c.ID); err != nil {
		return fmt.Errorf("clearing clauses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clauses (id, contract_id, clause_index, clause_text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, cl := range clauses {
		if _, err := stmt.ExecContext(ctx, cl.ID, c.ID, cl.Index, cl.Text, cl.CreatedAt); err != nil {
			return fmt.Errorf("inserting clause %d: %w", cl.Index, err)
		}
	}

	return tx.Commit()
}

const contractColumns = `id, file_name, mime_type, size_bytes, content_hash, raw_text, warning, tier, clause_count, uploaded_at`

// GetContract returns the contract with the given id.
func (s *SQLiteStore) GetContract(ctx context.Context, id string) (*entities.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+contractColumns+" FROM contracts WHERE id = ?", id)
	return scanContract(row)
}

// FindByHash returns the contract whose content hash matches.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (*entities.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+contractColumns+" FROM contracts WHERE content_hash = ?", hash)
	return scanContract(row)
}

// ListContracts returns all contracts, newest first.
func (s *SQLiteStore) ListContracts(ctx context.Context) ([]entities.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT "+contractColumns+" FROM contracts ORDER BY uploaded_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying contracts: %w", err)
	}
	defer rows.Close()

	contracts := []entities.Contract{}
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, *c)
	}
	return contracts, rows.Err()
}

// ListClauses returns the clauses of a contract ordered by index.
func (s *SQLiteStore) ListClauses(ctx context.Context, contractID string) ([]entities.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, contract_id, clause_index, clause_text, created_at
		FROM clauses WHERE contract_id = ? ORDER BY clause_index
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("querying clauses: %w", err)
	}
	defer rows.Close()

	clauses := []entities.Clause{}
	for rows.Next() {
		var cl entities.Clause
		if err := rows.Scan(&cl.ID, &cl.ContractID, &cl.Index, &cl.Text, &cl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning clause: %w", err)
		}
		clauses = append(clauses, cl)
	}
	return clauses, rows.Err()
}

// DeleteContract removes a contract; its clauses go with it.
func (s *SQLiteStore) DeleteContract(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM contracts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting contract: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*entities.Contract, error) {
	var c entities.Contract
	var raw sql.NullString
	err := row.Scan(&c.ID, &c.FileName, &c.MIMEType, &c.SizeBytes, &c.ContentHash, &raw,
		&c.Warning, &c.Tier, &c.ClauseCount, &c.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning contract: %w", err)
	}
	if raw.Valid {
		text := raw.String
		c.RawText = &text
	}
	return &c, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
