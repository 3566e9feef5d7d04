package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zeto-space/exoclassify/internal/bulk"
	"github.com/zeto-space/exoclassify/internal/config"
	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/schema"
	"github.com/zeto-space/exoclassify/internal/verdict"
)

var resultFormats = []string{"csv", "json", "yaml", "parquet"}

func newClassifyCmd(opts *globalOptions) *cobra.Command {
	var output string
	var format string
	var strict bool
	var chunkSize int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify every record in a CSV or Parquet file",
		Long: `Reads a bulk file of candidates, sends them to the classification service
and writes one result row per input row, in input order.

CSV headers may use either the short keys (orbper, teff, ...) or the long
names (orbital_period, stellar_temp, ...). Use "-" to read CSV from stdin.
Values are not range checked unless --strict is given.`,
		Example: `  # Print results as CSV
  exoclassify classify koi.csv

  # Write results to a file; the format follows the extension
  exoclassify classify koi.parquet -o results.parquet

  # Large catalogue in chunks of 500, four at a time
  exoclassify classify cumulative.csv --chunk-size 500 --concurrency 4 -o results.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = formatFromPath(output)
			}
			if !validFormat(format) {
				return fmt.Errorf("unsupported output format: %s (supported: %s)", format, strings.Join(resultFormats, ", "))
			}
			if format == "parquet" && output == "" {
				return fmt.Errorf("parquet output needs --output")
			}

			records, err := loadInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}

			a, err := newApp(opts, func(cfg *config.Config) {
				if cmd.Flags().Changed("strict") {
					cfg.Batch.Strict = strict
				}
				if cmd.Flags().Changed("chunk-size") {
					cfg.Batch.ChunkSize = chunkSize
				}
				if cmd.Flags().Changed("concurrency") {
					cfg.Batch.Concurrency = concurrency
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.AnalyzeBatch(cmd.Context(), records)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := writeResults(w, format, result); err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), summaryLine(result.Summary))
			if result.Briefing != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), result.Briefing)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write results to this file instead of stdout")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: csv, json, yaml or parquet (default from --output extension, else csv)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject records outside the parameter bounds before sending")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Split the batch into requests of this many records (0 sends one request)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum chunk requests in flight")

	return cmd
}

func loadInput(path string, stdin io.Reader) ([]schema.Record, error) {
	if path == "-" {
		return bulk.ParseReader(stdin)
	}
	return bulk.Load(path)
}

func formatFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "yml":
		return "yaml"
	case "":
		return "csv"
	}
	return ext
}

func validFormat(format string) bool {
	for _, f := range resultFormats {
		if f == format {
			return true
		}
	}
	return false
}

func writeResults(w io.Writer, format string, result pipeline.BatchResult) error {
	switch format {
	case "parquet":
		return export.WriteParquet(w, result.Records, result.Verdicts)
	case "json":
		return export.WriteJSON(w, result.Rows())
	case "yaml":
		return export.WriteYAML(w, result.Rows())
	default:
		text, err := export.ToDelimitedText(result.Rows())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, text)
		return err
	}
}

func summaryLine(s verdict.Summary) string {
	return fmt.Sprintf("Analyzed %d records: %d confirmed (%.1f%%), %d candidates (%.1f%%), %d false positives (%.1f%%)",
		s.Total,
		s.Confirmed, s.Percent(s.Confirmed),
		s.Candidate, s.Percent(s.Candidate),
		s.FalsePositives, s.Percent(s.FalsePositives))
}
