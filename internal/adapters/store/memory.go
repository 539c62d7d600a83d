package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// MemoryStore is a map-backed contract repository. Nothing survives Close.
type MemoryStore struct {
	mu        sync.RWMutex
	contracts map[string]entities.Contract // contractID -> contract
	clauses   map[string][]entities.Clause // contractID -> clauses by index
	hashes    map[string]string            // content hash -> contractID
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contracts: make(map[string]entities.Contract),
		clauses:   make(map[string][]entities.Clause),
		hashes:    make(map[string]string),
	}
}

// SaveContract upserts the contract and replaces its clauses.
func (s *MemoryStore) SaveContract(ctx context.Context, c entities.Contract, clauses []entities.Clause) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.hashes[c.ContentHash]; ok && owner != c.ID {
		return fmt.Errorf("content hash already stored for contract %s", owner)
	}
	if prev, ok := s.contracts[c.ID]; ok && prev.ContentHash != c.ContentHash {
		delete(s.hashes, prev.ContentHash)
	}

	c.RawText = cloneString(c.RawText)
	s.contracts[c.ID] = c
	s.hashes[c.ContentHash] = c.ID

	stored := make([]entities.Clause, len(clauses))
	copy(stored, clauses)
	for i := range stored {
		stored[i].ContractID = c.ID
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })
	s.clauses[c.ID] = stored
	return nil
}

// GetContract returns the contract with the given id.
func (s *MemoryStore) GetContract(ctx context.Context, id string) (*entities.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contracts[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	c.RawText = cloneString(c.RawText)
	return &c, nil
}

// FindByHash returns the contract whose content hash matches.
func (s *MemoryStore) FindByHash(ctx context.Context, hash string) (*entities.Contract, error) {
	s.mu.RLock()
	id, ok := s.hashes[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, ports.ErrNotFound
	}
	return s.GetContract(ctx, id)
}

// ListContracts returns all contracts, newest first.
func (s *MemoryStore) ListContracts(ctx context.Context) ([]entities.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		c.RawText = cloneString(c.RawText)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListClauses returns the clauses of a contract ordered by index.
func (s *MemoryStore) ListClauses(ctx context.Context, contractID string) ([]entities.Clause, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.Clause, len(s.clauses[contractID]))
	copy(out, s.clauses[contractID])
	return out, nil
}

// DeleteContract removes a contract and its clauses.
func (s *MemoryStore) DeleteContract(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contracts[id]
	if !ok {
		return ports.ErrNotFound
	}
	delete(s.hashes, c.ContentHash)
	delete(s.contracts, id)
	delete(s.clauses, id)
	return nil
}

// Close drops all data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contracts = make(map[string]entities.Contract)
	s.clauses = make(map[string][]entities.Clause)
	s.hashes = make(map[string]string)
	return nil
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
