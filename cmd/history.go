package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zeto-space/exoclassify/internal/export"
	"github.com/zeto-space/exoclassify/internal/history"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "List past analyses or show one",
		Long: `Reads the local analysis history. Without an ID the most recent analyses
are listed; with an ID the stored verdicts for that analysis are printed.`,
		Example: `  # Last 20 analyses
  exoclassify history

  # One analysis as YAML
  exoclassify history 3f1c... --format yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if !cfg.HistoryEnabled() {
				return errors.New("history is disabled")
			}
			store, err := history.Open(cfg.History)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				a, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if format == "json" {
					return export.WriteJSON(out, a)
				}
				return export.WriteYAML(out, a)
			}

			list, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return export.WriteJSON(out, list)
			case "yaml":
				return export.WriteYAML(out, list)
			}
			return printHistory(out, list)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of analyses to list")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json or yaml (default table, or yaml for one analysis)")

	return cmd
}

func printHistory(w io.Writer, list []history.Analysis) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCREATED\tRECORDS\tCONFIRMED\tCANDIDATE\tFALSE POSITIVE")
	for _, a := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			a.ID, a.Kind, a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			a.Records, a.Summary.Confirmed, a.Summary.Candidate, a.Summary.FalsePositives)
	}
	return tw.Flush()
}
