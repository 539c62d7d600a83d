package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wolverine5550/clausecheck/internal/adapters/export"
	"github.com/wolverine5550/clausecheck/internal/adapters/filewatcher"
	"github.com/wolverine5550/clausecheck/internal/adapters/parser"
	"github.com/wolverine5550/clausecheck/internal/domain/usecases"
	httpserver "github.com/wolverine5550/clausecheck/internal/infrastructure/http"
	"github.com/wolverine5550/clausecheck/internal/infrastructure/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. With --watch (or watcher.enabled) files dropped into
the inbox directory are ingested as they arrive.

Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("watch") {
				a.cfg.Watcher.Enabled = watch
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "ingest files dropped into the inbox directory")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	logger := a.logger

	repo, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	pdf := a.pdfParser()
	if cfg.Extractor.StartService && !pdf.IsServiceHealthy(ctx) {
		stopPDF, err := pdf.StartService(ctx, cfg.Extractor.ScriptDir)
		if err != nil {
			return err
		}
		defer stopPDF()
	} else if !pdf.IsServiceHealthy(ctx) {
		logger.Warn("pdf service not reachable; PDF uploads will be stored without text",
			zap.String("url", cfg.Extractor.PDFServiceURL))
	}

	m := metrics.NewMetrics()
	ingest := a.ingestUseCase(parser.NewExtractor(pdf), repo, usecases.WithMetrics(m))
	contracts := usecases.NewContractsUseCase(repo)

	server, err := httpserver.NewServer(ingest, contracts, export.NewXLSXExporter(), m, logger.Named("http"), httpserver.Config{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		CORSOrigins:     cfg.Server.CORSOrigins,
	})
	if err != nil {
		return err
	}

	// The inbox is set up first so a failure returns before anything runs.
	g, gctx := errgroup.WithContext(ctx)
	if cfg.Watcher.Enabled {
		if err := a.followInbox(gctx, g, ingest); err != nil {
			return err
		}
	}
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("clausecheck stopped")
	return nil
}

// followInbox ingests files already in the inbox, then keeps ingesting new
// arrivals until ctx ends.
func (a *app) followInbox(ctx context.Context, g *errgroup.Group, ingest *usecases.IngestUseCase) error {
	cfg := a.cfg.Watcher
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("creating inbox %s: %w", cfg.Dir, err)
	}

	fl := a.fileLoader()
	watcher, err := filewatcher.NewFSNotifyWatcher(cfg.Extensions, cfg.Settle, a.logger.Named("watcher"))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	events, err := watcher.Watch(ctx, cfg.Dir)
	if err != nil {
		watcher.Stop()
		return fmt.Errorf("watching %s: %w", cfg.Dir, err)
	}

	g.Go(func() error {
		defer watcher.Stop()

		existing, err := fl.Expand([]string{cfg.Dir})
		if err != nil {
			a.logger.Warn("scanning inbox failed", zap.Error(err))
		} else if len(existing) > 0 {
			results, _ := ingest.IngestFiles(ctx, fl, existing, a.cfg.Ingest.Workers)
			for _, r := range results {
				if r.Err != nil {
					a.logger.Warn("inbox file not ingested", zap.String("path", r.Path), zap.Error(r.Err))
				}
			}
		}

		return ingest.Follow(ctx, fl, events)
	})
	return nil
}
