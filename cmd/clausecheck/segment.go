package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wolverine5550/clausecheck/internal/adapters/parser"
	"github.com/wolverine5550/clausecheck/internal/domain/entities"
	"github.com/wolverine5550/clausecheck/internal/domain/segmenter"
)

type segmentOutput struct {
	File    string         `json:"file,omitempty" yaml:"file,omitempty"`
	Tier    string         `json:"tier" yaml:"tier"`
	Clauses []clauseOutput `json:"clauses" yaml:"clauses"`
}

type clauseOutput struct {
	Index int    `json:"index" yaml:"index"`
	Text  string `json:"text" yaml:"text"`
}

func newSegmentCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "segment [file|-]",
		Short: "Split a contract into clauses and print them",
		Long: `Split a contract into clauses without storing it.

Plain text is read from the file or stdin; PDF and DOCX files are run
through text extraction first.

Examples:
  # Segment a text file
  clausecheck segment msa.txt

  # Segment from stdin as JSON
  pbpaste | clausecheck segment - --format json

  # Segment a Word document as YAML
  clausecheck segment nda.docx --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
			}

			name, text, err := a.readSegmentInput(cmd, args)
			if err != nil {
				return err
			}

			clauses, tier, err := segmenter.SegmentWithTier(text)
			if err != nil {
				return err
			}

			out := segmentOutput{File: name, Tier: tier.String(), Clauses: make([]clauseOutput, len(clauses))}
			for i, c := range clauses {
				out.Clauses[i] = clauseOutput{Index: i, Text: c.Text}
			}
			return writeSegmentOutput(cmd.OutOrStdout(), format, out)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json or yaml")
	return cmd
}

// readSegmentInput returns the input's display name and its text.
func (a *app) readSegmentInput(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return "", parser.NormalizeNewlines(string(data)), nil
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read file %s: %w", path, err)
	}

	upload := entities.Upload{FileName: filepath.Base(path), Data: data, Source: "cli"}
	if parser.MIMETypeByExt(upload.Ext()) == "" {
		// Unknown extensions are read as plain text.
		upload.MIMEType = parser.MIMEText
	}
	text, err := parser.NewExtractor(a.pdfParser()).Extract(cmd.Context(), upload)
	if err != nil {
		return "", "", err
	}
	return path, text, nil
}

func writeSegmentOutput(w io.Writer, format string, out segmentOutput) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		fmt.Fprintf(w, "tier: %s, clauses: %d\n", out.Tier, len(out.Clauses))
		for _, c := range out.Clauses {
			fmt.Fprintf(w, "\n[%d] %s\n", c.Index+1, c.Text)
		}
		return nil
	}
}
