package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	DialTimeout time.Duration
}

// PostgresStore implements ports.ContractRepository on a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and creates the schema if needed.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres DSN is required")
	}
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "clausecheck"

	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		size_bytes BIGINT NOT NULL DEFAULT 0,
		content_hash TEXT NOT NULL UNIQUE,
		raw_text TEXT,
		warning TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT '',
		clause_count INTEGER NOT NULL DEFAULT 0,
		uploaded_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS clauses (
		id TEXT PRIMARY KEY,
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		clause_index INTEGER NOT NULL,
		clause_text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (contract_id, clause_index)
	);
	`)
	return err
}

// SaveContract upserts the contract and replaces its clauses in one
// transaction. Clause inserts go out as a single batch.
func (s *PostgresStore) SaveContract(ctx context.Context, c entities.Contract, clauses []entities.Clause) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx, `
		INSERT INTO contracts (id, file_name, mime_type, size_bytes, content_hash, raw_text, warning, tier, clause_count, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			content_hash = EXCLUDED.content_hash,
			raw_text = EXCLUDED.raw_text,
			warning = EXCLUDED.warning,
			tier = EXCLUDED.tier,
			clause_count = EXCLUDED.clause_count,
			uploaded_at = EXCLUDED.uploaded_at
	`, c.ID, c.FileName, c.MIMEType, c.SizeBytes, c.ContentHash, c.RawText,
		c.Warning, c.Tier, c.ClauseCount, c.UploadedAt)
	if err != nil {
		return fmt.Errorf("upserting contract: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM clauses WHERE contract_id = $1", c.ID); err != nil {
		return fmt.Errorf("clearing clauses: %w", err)
	}

	if len(clauses) > 0 {
		batch := &pgx.Batch{}
		for _, cl := range clauses {
			batch.Queue(`
				INSERT INTO clauses (id, contract_id, clause_index, clause_text, created_at)
				VALUES ($1, $2, $3, $4, $5)
			`, cl.ID, c.ID, cl.Index, cl.Text, cl.CreatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		for _, cl := range clauses {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("inserting clause %d: %w", cl.Index, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("closing batch: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetContract returns the contract with the given id.
func (s *PostgresStore) GetContract(ctx context.Context, id string) (*entities.Contract, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+contractColumns+" FROM contracts WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("querying contract: %w", err)
	}
	return collectOneContract(rows)
}

// FindByHash returns the contract whose content hash matches.
func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*entities.Contract, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+contractColumns+" FROM contracts WHERE content_hash = $1", hash)
	if err != nil {
		return nil, fmt.Errorf("querying contract: %w", err)
	}
	return collectOneContract(rows)
}

// ListContracts returns all contracts, newest first.
func (s *PostgresStore) ListContracts(ctx context.Context) ([]entities.Contract, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+contractColumns+" FROM contracts ORDER BY uploaded_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying contracts: %w", err)
	}
	contracts, err := pgx.CollectRows(rows, scanPgContract)
	if err != nil {
		return nil, fmt.Errorf("scanning contracts: %w", err)
	}
	if contracts == nil {
		contracts = []entities.Contract{}
	}
	return contracts, nil
}

// ListClauses returns the clauses of a contract ordered by index.
func (s *PostgresStore) ListClauses(ctx context.Context, contractID string) ([]entities.Clause, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, contract_id, clause_index, clause_text, created_at
		FROM clauses WHERE contract_id = $1 ORDER BY clause_index
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("querying clauses: %w", err)
	}
	clauses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entities.Clause, error) {
		var cl entities.Clause
		err := row.Scan(&cl.ID, &cl.ContractID, &cl.Index, &cl.Text, &cl.CreatedAt)
		return cl, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning clauses: %w", err)
	}
	if clauses == nil {
		clauses = []entities.Clause{}
	}
	return clauses, nil
}

// DeleteContract removes a contract; its clauses go with it.
func (s *PostgresStore) DeleteContract(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM contracts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting contract: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgContract(row pgx.CollectableRow) (entities.Contract, error) {
	var c entities.Contract
	err := row.Scan(&c.ID, &c.FileName, &c.MIMEType, &c.SizeBytes, &c.ContentHash, &c.RawText,
		&c.Warning, &c.Tier, &c.ClauseCount, &c.UploadedAt)
	return c, err
}

func collectOneContract(rows pgx.Rows) (*entities.Contract, error) {
	c, err := pgx.CollectExactlyOneRow(rows, scanPgContract)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning contract: %w", err)
	}
	return &c, nil
}
