package usecases

import (
	"context"
	"fmt"
	"io"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

// ContractsUseCase serves stored contracts to readers.
type ContractsUseCase struct {
	repo ports.ContractRepository
}

// NewContractsUseCase creates a ContractsUseCase.
func NewContractsUseCase(repo ports.ContractRepository) *ContractsUseCase {
	return &ContractsUseCase{repo: repo}
}

// List returns all stored contracts, newest first.
func (uc *ContractsUseCase) List(ctx context.Context) ([]entities.Contract, error) {
	contracts, err := uc.repo.ListContracts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	return contracts, nil
}

// Get returns a contract with its clauses in reading order.
func (uc *ContractsUseCase) Get(ctx context.Context, id string) (*entities.ContractDetail, error) {
	contract, err := uc.repo.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	clauses, err := uc.repo.ListClauses(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing clauses: %w", err)
	}
	if clauses == nil {
		clauses = []entities.Clause{}
	}
	return &entities.ContractDetail{Contract: *contract, Clauses: clauses}, nil
}

// Export writes a contract and its clauses to w in the exporter's format.
func (uc *ContractsUseCase) Export(ctx context.Context, id string, exporter ports.ClauseExporter, w io.Writer) error {
	detail, err := uc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := exporter.Export(w, detail.Contract, detail.Clauses); err != nil {
		return fmt.Errorf("exporting contract %s: %w", id, err)
	}
	return nil
}
