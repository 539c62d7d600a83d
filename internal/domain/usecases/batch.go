package usecases

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
)

const defaultWorkers = 4

// FileResult is the outcome of ingesting one file from disk.
type FileResult struct {
	Path   string
	Result *entities.IngestResult
	Err    error
}

// IngestFiles loads and ingests paths with at most workers files in flight.
// A failing file is reported in its FileResult and never stops the batch.
// Results keep the order of paths. The returned error is only set when ctx
// ended before every file was started.
func (uc *IngestUseCase) IngestFiles(ctx context.Context, loader ports.DocumentLoader, paths []string, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}

	results := make([]FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range paths {
		results[i].Path = path
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		i, path := i, path
		g.Go(func() error {
			results[i].Result, results[i].Err = uc.ingestFile(ctx, loader, path)
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// Follow ingests files announced by a watcher until events is closed or ctx
// ends. Deleted files leave their stored contract in place.
func (uc *IngestUseCase) Follow(ctx context.Context, loader ports.DocumentLoader, events <-chan ports.FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Operation {
			case ports.FileCreated, ports.FileModified:
				res, err := uc.ingestFile(ctx, loader, ev.Path)
				if err != nil {
					uc.logger.Warn("inbox file not ingested",
						zap.String("path", ev.Path),
						zap.Stringer("op", ev.Operation),
						zap.Error(err),
					)
					continue
				}
				uc.logger.Debug("inbox file ingested",
					zap.String("path", ev.Path),
					zap.String("contract_id", res.Contract.ID),
					zap.Bool("deduplicated", res.Deduplicated),
				)
			case ports.FileDeleted:
				uc.logger.Debug("inbox file removed", zap.String("path", ev.Path))
			}
		}
	}
}

func (uc *IngestUseCase) ingestFile(ctx context.Context, loader ports.DocumentLoader, path string) (*entities.IngestResult, error) {
	upload, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return uc.Ingest(ctx, *upload)
}
