package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wolverine5550/clausecheck/internal/adapters/export"
	"github.com/wolverine5550/clausecheck/internal/adapters/parser"
	"github.com/wolverine5550/clausecheck/internal/domain/usecases"
)

func newIngestCmd(a *app) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Ingest contract files or directories into the store",
		Long: `Extract, segment and store contract files. Directories are walked
recursively; hidden files are skipped. Files already stored (same bytes)
are reported as duplicates and not processed again.

Examples:
  # Ingest a folder of contracts with 8 workers
  clausecheck ingest ./contracts --workers 8

  # Ingest into Postgres
  CLAUSECHECK_STORE_DRIVER=postgres CLAUSECHECK_STORE_DSN=postgres://... clausecheck ingest msa.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if workers <= 0 {
				workers = a.cfg.Ingest.Workers
			}

			repo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			fl := a.fileLoader()
			paths, err := fl.Expand(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no contract files found (extensions: %v)", fl.SupportedExtensions())
			}

			uc := a.ingestUseCase(parser.NewExtractor(a.pdfParser()), repo)
			results, err := uc.IngestFiles(ctx, fl, paths, workers)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FILE\tCONTRACT\tTIER\tCLAUSES\tSTATUS")
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(tw, "%s\t-\t-\t-\terror: %v\n", r.Path, r.Err)
					continue
				}
				c := r.Result.Contract
				status := "stored"
				switch {
				case r.Result.Deduplicated:
					status = "duplicate"
				case r.Result.Warning != "":
					status = r.Result.Warning
				}
				tier := c.Tier
				if tier == "" {
					tier = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.Path, c.ID, tier, c.ClauseCount, status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "files processed concurrently (default from ingest.workers)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <contract-id>",
		Short: "Export a stored contract and its clauses to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id := args[0]

			repo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			exporter := export.NewXLSXExporter()
			if output == "" {
				output = "contract-" + id + exporter.FileExtension()
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := usecases.NewContractsUseCase(repo).Export(ctx, id, exporter, f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default contract-<id>.xlsx)")
	return cmd
}
