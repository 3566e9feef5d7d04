package cmd

import (
	"github.com/spf13/cobra"

	"github.com/zeto-space/exoclassify/internal/inbox"
)

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var existing bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Classify CSV and Parquet files dropped into a directory",
		Long: `Watches a directory and classifies every .csv or .parquet file that is
created or rewritten in it. Results are written beside the input as
<file>.results.csv (koi.csv gives koi.csv.results.csv); failures are written
as <file>.error.txt.`,
		Example: `  # Watch ./inbox, also processing files already there
  exoclassify watch ./inbox --existing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := inbox.New(args[0], a.service)
			if err != nil {
				return err
			}
			w.ScanExisting = existing
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&existing, "existing", false, "Also classify files already in the directory without results")

	return cmd
}
