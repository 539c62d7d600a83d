package main

import (
	"context"

	"github.com/wolverine5550/clausecheck/internal/adapters/loader"
	"github.com/wolverine5550/clausecheck/internal/adapters/parser"
	"github.com/wolverine5550/clausecheck/internal/adapters/store"
	"github.com/wolverine5550/clausecheck/internal/domain/ports"
	"github.com/wolverine5550/clausecheck/internal/domain/usecases"
)

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Driver:      a.cfg.Store.Driver,
		Path:        a.cfg.Store.Path,
		DSN:         a.cfg.Store.DSN,
		MaxConns:    a.cfg.Store.MaxConns,
		DialTimeout: a.cfg.Store.DialTimeout,
	}, a.logger)
}

func (a *app) pdfParser() *parser.PDFServiceParser {
	return parser.NewPDFServiceParser(a.cfg.Extractor.PDFServiceURL, a.cfg.Extractor.Timeout, a.logger.Named("pdf"))
}

func (a *app) fileLoader() *loader.FileLoader {
	return loader.NewFileLoader(a.cfg.Watcher.Extensions, a.cfg.Server.MaxUploadBytes)
}

func (a *app) ingestUseCase(extractor ports.TextExtractor, repo ports.ContractRepository, opts ...usecases.IngestOption) *usecases.IngestUseCase {
	opts = append([]usecases.IngestOption{usecases.WithLogger(a.logger.Named("ingest"))}, opts...)
	return usecases.NewIngestUseCase(extractor, repo, opts...)
}
