// Package usecases contains application business rules.
// Usecases orchestrate entities and depend only on port interfaces.
package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
	"github.com/wolverine5550/clausecheck/internal/domain/segmenter"
)

var (
	// ErrEmptyUpload is returned for uploads without a file name or without content.
	ErrEmptyUpload = errors.New("upload has no file name or no content")
	// ErrUnsupportedType is returned for uploads the extractor does not accept.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Warnings stored on a contract when processing could not complete.
const (
	WarnExtractionFailed = "Text extraction failed. File uploaded, but no text was extracted."
	WarnNoClauses        = "Text was extracted but no clauses could be segmented."
)

// Ingest outcomes reported to metrics.
const (
	OutcomeStored             = "stored"
	OutcomeDeduplicated       = "deduplicated"
	OutcomeExtractionFailed   = "extraction_failed"
	OutcomeSegmentationFailed = "segmentation_failed"
	OutcomeError              = "error"
)

// IngestUseCase turns uploads into stored contracts and clauses.
type IngestUseCase struct {
	extractor ports.TextExtractor
	repo      ports.ContractRepository
	metrics   ports.IngestMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// IngestOption configures an IngestUseCase.
type IngestOption func(*IngestUseCase)

// WithMetrics reports segmentations and ingest outcomes to m.
func WithMetrics(m ports.IngestMetrics) IngestOption {
	return func(uc *IngestUseCase) {
		if m != nil {
			uc.metrics = m
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IngestOption {
	return func(uc *IngestUseCase) {
		if l != nil {
			uc.logger = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) IngestOption {
	return func(uc *IngestUseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

// NewIngestUseCase creates an IngestUseCase with injected dependencies.
func NewIngestUseCase(extractor ports.TextExtractor, repo ports.ContractRepository, opts ...IngestOption) *IngestUseCase {
	uc := &IngestUseCase{
		extractor: extractor,
		repo:      repo,
		metrics:   nopMetrics{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Ingest extracts, segments and stores one upload.
//
// A failed extraction is not an error: the contract is stored without raw
// text and carries WarnExtractionFailed. An upload whose bytes were seen
// before returns the stored contract with Deduplicated set. Files of a type
// the extractor does not accept fail with ErrUnsupportedType and are not
// stored.
func (uc *IngestUseCase) Ingest(ctx context.Context, upload entities.Upload) (*entities.IngestResult, error) {
	if upload.FileName == "" || len(upload.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	if mt := uc.extractor.ContentType(upload); !slices.Contains(uc.extractor.SupportedTypes(), mt) {
		return nil, fmt.Errorf("%w: %q (%s)", ErrUnsupportedType, upload.FileName, mt)
	}

	// 1. Deduplicate on content hash
	hash := contentHash(upload.Data)
	existing, err := uc.repo.FindByHash(ctx, hash)
	switch {
	case err == nil:
		return uc.deduplicated(ctx, existing)
	case !errors.Is(err, ports.ErrNotFound):
		uc.metrics.ObserveIngest(OutcomeError)
		return nil, fmt.Errorf("looking up content hash: %w", err)
	}

	contract := entities.Contract{
		ID:          uuid.NewString(),
		FileName:    upload.FileName,
		MIMEType:    upload.MIMEType,
		SizeBytes:   int64(len(upload.Data)),
		ContentHash: hash,
		UploadedAt:  uc.now(),
	}
	outcome := OutcomeStored

	// 2. Extract text
	text, err := uc.extractor.Extract(ctx, upload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		uc.logger.Warn("text extraction failed",
			zap.String("file", upload.FileName),
			zap.String("mime_type", upload.MIMEType),
			zap.String("source", upload.Source),
			zap.Error(err),
		)
		contract.Warning = WarnExtractionFailed
		outcome = OutcomeExtractionFailed
	} else {
		contract.RawText = &text
	}

	// 3. Segment into clauses
	var clauses []entities.Clause
	if contract.HasText() {
		clauses, err = uc.segmentContract(&contract, contract.RawText)
		if err != nil {
			if !errors.Is(err, segmenter.ErrInvalidInput) {
				uc.metrics.ObserveIngest(OutcomeError)
				return nil, err
			}
			// Deterministic failure: record it on the contract and move on.
			uc.logger.Warn("segmentation rejected extracted text",
				zap.String("contract_id", contract.ID),
				zap.String("file", upload.FileName),
				zap.Error(err),
			)
			outcome = OutcomeSegmentationFailed
		}
	}

	// 4. Store contract and clauses together. A concurrent upload of the
	// same bytes may have been stored since the lookup above.
	if err := uc.repo.SaveContract(ctx, contract, clauses); err != nil {
		if existing, findErr := uc.repo.FindByHash(ctx, hash); findErr == nil {
			return uc.deduplicated(ctx, existing)
		}
		uc.metrics.ObserveIngest(OutcomeError)
		return nil, fmt.Errorf("saving contract: %w", err)
	}
	uc.metrics.ObserveIngest(outcome)

	uc.logger.Info("contract ingested",
		zap.String("contract_id", contract.ID),
		zap.String("file", contract.FileName),
		zap.String("tier", contract.Tier),
		zap.Int("clauses", contract.ClauseCount),
		zap.String("outcome", outcome),
	)

	return &entities.IngestResult{
		Contract:  contract,
		Clauses:   clauses,
		Extracted: contract.HasText(),
		Warning:   contract.Warning,
	}, nil
}

// Resegment reruns segmentation over the stored raw text of a contract and
// replaces its clauses. A contract without raw text yields an error matching
// segmenter.ErrInvalidInput.
func (uc *IngestUseCase) Resegment(ctx context.Context, contractID string) (*entities.IngestResult, error) {
	contract, err := uc.repo.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("loading contract %s: %w", contractID, err)
	}

	contract.Warning = ""
	clauses, err := uc.segmentContract(contract, contract.RawText)
	if err != nil {
		return nil, fmt.Errorf("resegmenting contract %s: %w", contractID, err)
	}

	if err := uc.repo.SaveContract(ctx, *contract, clauses); err != nil {
		return nil, fmt.Errorf("saving contract: %w", err)
	}

	uc.logger.Info("contract resegmented",
		zap.String("contract_id", contract.ID),
		zap.String("tier", contract.Tier),
		zap.Int("clauses", contract.ClauseCount),
	)

	return &entities.IngestResult{
		Contract:  *contract,
		Clauses:   clauses,
		Extracted: true,
		Warning:   contract.Warning,
	}, nil
}

// Preview segments loosely typed input without storing anything. Anything
// other than a non-empty string fails with segmenter.ErrInvalidInput.
func (uc *IngestUseCase) Preview(raw any) (*entities.Segmentation, error) {
	start := time.Now()
	segs, tier, err := segmenter.SegmentValue(raw)
	if err != nil {
		return nil, err
	}
	uc.metrics.ObserveSegmentation(tier.String(), len(segs), time.Since(start))

	clauses := make([]entities.Clause, len(segs))
	for i, s := range segs {
		clauses[i] = entities.Clause{Index: i, Text: s.Text}
	}
	return &entities.Segmentation{Tier: tier.String(), Clauses: clauses}, nil
}

// Delete removes a contract and its clauses.
func (uc *IngestUseCase) Delete(ctx context.Context, contractID string) error {
	if err := uc.repo.DeleteContract(ctx, contractID); err != nil {
		return err
	}
	uc.logger.Info("contract deleted", zap.String("contract_id", contractID))
	return nil
}

func (uc *IngestUseCase) deduplicated(ctx context.Context, contract *entities.Contract) (*entities.IngestResult, error) {
	clauses, err := uc.repo.ListClauses(ctx, contract.ID)
	if err != nil {
		uc.metrics.ObserveIngest(OutcomeError)
		return nil, fmt.Errorf("loading clauses: %w", err)
	}
	uc.metrics.ObserveIngest(OutcomeDeduplicated)
	uc.logger.Info("upload matches stored contract",
		zap.String("contract_id", contract.ID),
		zap.String("file", contract.FileName),
	)
	return &entities.IngestResult{
		Contract:     *contract,
		Clauses:      clauses,
		Extracted:    contract.HasText(),
		Deduplicated: true,
		Warning:      contract.Warning,
	}, nil
}

// segmentContract segments raw and records tier, clause count and, when
// nothing survived, a warning on the contract.
func (uc *IngestUseCase) segmentContract(contract *entities.Contract, raw any) ([]entities.Clause, error) {
	start := time.Now()
	segs, tier, err := segmenter.SegmentValue(raw)
	if err != nil {
		contract.Tier = ""
		contract.ClauseCount = 0
		contract.Warning = WarnNoClauses
		return nil, err
	}
	uc.metrics.ObserveSegmentation(tier.String(), len(segs), time.Since(start))

	created := uc.now()
	clauses := make([]entities.Clause, len(segs))
	for i, s := range segs {
		clauses[i] = entities.Clause{
			ID:         uuid.NewString(),
			ContractID: contract.ID,
			Index:      i,
			Text:       s.Text,
			CreatedAt:  created,
		}
	}

	contract.Tier = tier.String()
	contract.ClauseCount = len(clauses)
	if len(clauses) == 0 {
		contract.Warning = WarnNoClauses
	}
	return clauses, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type nopMetrics struct{}

func (nopMetrics) ObserveSegmentation(string, int, time.Duration) {}
func (nopMetrics) ObserveIngest(string)                           {}
