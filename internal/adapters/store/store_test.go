package store

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// postgresDSNEnv names the variable that enables the Postgres run of the suite.
const postgresDSNEnv = "CLAUSECHECK_TEST_POSTGRES_DSN"

type storeFactory func(t *testing.T) Store

func factories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(t.TempDir())
			require.NoError(t, err)
			return s
		},
		"postgres": func(t *testing.T) Store {
			dsn := os.Getenv(postgresDSNEnv)
			if dsn == "" {
				t.Skipf("%s not set", postgresDSNEnv)
			}
			s, err := NewPostgresStore(context.Background(), PostgresConfig{DSN: dsn})
			require.NoError(t, err)
			_, err = s.pool.Exec(context.Background(), "TRUNCATE contracts CASCADE")
			require.NoError(t, err)
			return s
		},
	}
}

// forEachStore runs fn against every store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range factories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func makeContract(id string, text *string, uploaded time.Time) entities.Contract {
	return entities.Contract{
		ID:          id,
		FileName:    id + ".pdf",
		MIMEType:    "application/pdf",
		SizeBytes:   1024,
		ContentHash: "hash-" + id,
		RawText:     text,
		Tier:        "numbered",
		UploadedAt:  uploaded,
	}
}

func makeClauses(contractID string, texts ...string) []entities.Clause {
	out := make([]entities.Clause, len(texts))
	for i, txt := range texts {
		out[i] = entities.Clause{
			ID:         fmt.Sprintf("%s-cl-%d", contractID, i),
			ContractID: contractID,
			Index:      i,
			Text:       txt,
			CreatedAt:  baseTime,
		}
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestStore_SaveAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := makeContract("c1", strPtr("1. A.\n2. B."), baseTime)
		c.ClauseCount = 2
		require.NoError(t, s.SaveContract(ctx, c, makeClauses("c1", "1. A.", "2. B.")))

		got, err := s.GetContract(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "c1.pdf", got.FileName)
		assert.Equal(t, "application/pdf", got.MIMEType)
		assert.Equal(t, int64(1024), got.SizeBytes)
		assert.Equal(t, 2, got.ClauseCount)
		assert.Equal(t, "numbered", got.Tier)
		require.NotNil(t, got.RawText)
		assert.Equal(t, "1. A.\n2. B.", *got.RawText)
		assert.True(t, baseTime.Equal(got.UploadedAt), "uploaded_at %v", got.UploadedAt)

		clauses, err := s.ListClauses(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, clauses, 2)
		assert.Equal(t, 0, clauses[0].Index)
		assert.Equal(t, "2. B.", clauses[1].Text)
		assert.Equal(t, "c1", clauses[1].ContractID)
	})
}

func TestStore_NullRawText(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := makeContract("c1", nil, baseTime)
		c.Warning = "Text extraction failed. File uploaded, but no text was extracted."
		require.NoError(t, s.SaveContract(ctx, c, nil))

		got, err := s.GetContract(ctx, "c1")
		require.NoError(t, err)
		assert.Nil(t, got.RawText)
		assert.Equal(t, c.Warning, got.Warning)

		clauses, err := s.ListClauses(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, clauses)
	})
}

func TestStore_SaveReplacesClauses(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		c := makeContract("c1", strPtr("x"), baseTime)
		require.NoError(t, s.SaveContract(ctx, c, makeClauses("c1", "a", "b", "c")))

		c.Tier = "paragraph"
		next := makeClauses("c1", "only")
		next[0].ID = "c1-new-0"
		require.NoError(t, s.SaveContract(ctx, c, next))

		clauses, err := s.ListClauses(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, clauses, 1)
		assert.Equal(t, "only", clauses[0].Text)

		got, err := s.GetContract(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "paragraph", got.Tier)
	})
}

func TestStore_FindByHash(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveContract(ctx, makeContract("c1", nil, baseTime), nil))

		got, err := s.FindByHash(ctx, "hash-c1")
		require.NoError(t, err)
		assert.Equal(t, "c1", got.ID)

		_, err = s.FindByHash(ctx, "hash-missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestStore_DuplicateHashRejected(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveContract(ctx, makeContract("c1", nil, baseTime), nil))

		dup := makeContract("c2", nil, baseTime)
		dup.ContentHash = "hash-c1"
		assert.Error(t, s.SaveContract(ctx, dup, nil))
	})
}

func TestStore_ListNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		empty, err := s.ListContracts(ctx)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)

		require.NoError(t, s.SaveContract(ctx, makeContract("old", nil, baseTime), nil))
		require.NoError(t, s.SaveContract(ctx, makeContract("new", nil, baseTime.Add(time.Hour)), nil))
		require.NoError(t, s.SaveContract(ctx, makeContract("mid", nil, baseTime.Add(time.Minute)), nil))

		list, err := s.ListContracts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})
	})
}

func TestStore_Delete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.SaveContract(ctx, makeContract("c1", strPtr("x"), baseTime), makeClauses("c1", "a", "b")))

		require.NoError(t, s.DeleteContract(ctx, "c1"))

		_, err := s.GetContract(ctx, "c1")
		assert.ErrorIs(t, err, ports.ErrNotFound)
		clauses, err := s.ListClauses(ctx, "c1")
		require.NoError(t, err)
		assert.Empty(t, clauses)
		_, err = s.FindByHash(ctx, "hash-c1")
		assert.ErrorIs(t, err, ports.ErrNotFound)

		assert.ErrorIs(t, s.DeleteContract(ctx, "c1"), ports.ErrNotFound)
	})
}

func TestStore_ConcurrentSaves(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("c%d", i)
				assert.NoError(t, s.SaveContract(ctx, makeContract(id, nil, baseTime), makeClauses(id, "a", "b")))
			}(i)
		}
		wg.Wait()

		list, err := s.ListContracts(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 8)
	})
}

func TestSQLiteStore_ClausesCascadeOnDelete(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveContract(ctx, makeContract("c1", strPtr("x"), baseTime), makeClauses("c1", "a", "b", "c")))
	assert.Equal(t, 3, countClauseRows(t, s))

	require.NoError(t, s.DeleteContract(ctx, "c1"))
	assert.Equal(t, 0, countClauseRows(t, s))
}

// countClauseRows counts clause rows across all contracts, including any a
// cascade failed to remove.
func countClauseRows(t *testing.T, s *SQLiteStore) int {
	t.Helper()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	require.NoError(t, s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM clauses").Scan(&n))
	return n
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveContract(context.Background(), makeContract("c1", strPtr("x"), baseTime), makeClauses("c1", "a")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.GetContract(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1.pdf", got.FileName)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	text := "stored text"
	require.NoError(t, s.SaveContract(ctx, makeContract("c1", &text, baseTime), makeClauses("c1", "a")))
	text = "mutated"

	got, err := s.GetContract(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "stored text", *got.RawText)

	clauses, _ := s.ListClauses(ctx, "c1")
	clauses[0].Text = "changed"
	again, _ := s.ListClauses(ctx, "c1")
	assert.Equal(t, "a", again[0].Text)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Driver: DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverSQLite, Path: t.TempDir()}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "mongo"}, nil)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: DriverPostgres}, nil)
	assert.Error(t, err)
}
