package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeto-space/exoclassify/internal/acquisition"
	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/pipeline"
	"github.com/zeto-space/exoclassify/internal/schema"
)

// singleAnalyzer is the part of the pipeline the conversation needs.
type singleAnalyzer interface {
	AnalyzeOne(ctx context.Context, rec schema.Record) (pipeline.SingleResult, error)
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	var format string
	var outDir string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Enter parameters one at a time and classify the candidate",
		Long: `Starts a guided conversation on stdin that asks for the nine transit and
stellar parameters in order. Each answer is checked against the parameter's
bounds; rejected answers are asked again. Once all nine are in, the record is
sent to the classification service and the verdict is printed.`,
		Example: `  # Interactive session
  exoclassify ask

  # Save the report as YAML in ./reports
  exoclassify ask --export yaml --out reports

  # Scripted input
  printf '9.48\n616\n2.95\n2.26\n93.6\n793\n5455\n4.47\n0.93\n' | exoclassify ask`,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "", "json", "yaml":
			default:
				return fmt.Errorf("unsupported export format: %s", format)
			}

			a, err := newApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := converse(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), a.service)
			if err != nil {
				return err
			}
			if format == "" {
				return nil
			}
			path, err := writeReport(result, format, outDir, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "export", "", "Save the report as json or yaml")
	cmd.Flags().StringVar(&outDir, "out", ".", "Directory for exported reports")

	return cmd
}

// converse runs one acquisition session over in and classifies the result.
func converse(ctx context.Context, in io.Reader, out io.Writer, analyzer singleAnalyzer) (pipeline.SingleResult, error) {
	runner := acquisition.NewRunner(acquisition.NewSession())
	defer runner.Close()

	printOutputs(out, acquisition.Greeting())

	scanner := bufio.NewScanner(in)
	var rec schema.Record
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return pipeline.SingleResult{}, fmt.Errorf("failed to read input: %w", err)
			}
			return pipeline.SingleResult{}, errors.New("input ended before all parameters were collected")
		}

		res, err := runner.Submit(ctx, scanner.Text())
		if err != nil {
			return pipeline.SingleResult{}, err
		}
		printOutputs(out, res.Outputs)

		if r, ok := acquisition.FinalRecord(res.Outputs); ok {
			rec = r
			break
		}
	}

	result, err := analyzer.AnalyzeOne(ctx, rec)
	if err != nil {
		fmt.Fprintf(out, "Zeto: Analysis failed: %v\n", err)
		return pipeline.SingleResult{}, err
	}
	printVerdict(out, result)
	return result, nil
}

func printOutputs(out io.Writer, outputs []acquisition.Output) {
	for _, o := range outputs {
		fmt.Fprintf(out, "Zeto: %s\n", o.Text)
	}
}

func printVerdict(out io.Writer, r pipeline.SingleResult) {
	fmt.Fprintf(out, "\n%s (%.1f%% confidence)\n%s\n", r.Verdict.Title, r.Verdict.Confidence, r.Verdict.Description)
	if r.Briefing != "" {
		fmt.Fprintf(out, "\n%s\n", r.Briefing)
	}
	if r.AnalysisID != "" {
		fmt.Fprintf(out, "\nHistory ID: %s\n", r.AnalysisID)
	}
}

func writeReport(r pipeline.SingleResult, format, dir string, now time.Time) (string, error) {
	report := export.NewReport(r.Verdict, r.Record, now)
	name := report.FileName()
	if format == "yaml" {
		name = strings.TrimSuffix(name, ".json") + ".yaml"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if format == "yaml" {
		err = export.WriteYAML(f, report)
	} else {
		err = export.WriteJSON(f, report)
	}
	if err != nil {
		return "", err
	}
	slog.Debug("Report written", "path", path)
	return path, f.Close()
}
