package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-bridge/internal/export"
)

var (
	curateInput  string
	curateOutput string
	curateSample int
	curateSeed   uint64
	curateEmail  string
	curateDrop   []string
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Build a pitch list from an output file",
	Long:  "Keeps rows with a direct business email, drops role mailboxes and free-mail addresses, samples with a fixed seed and removes internal columns.",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := export.DefaultCurateOptions()
		opts.Sample = curateSample
		opts.Seed = curateSeed
		if curateEmail != "" {
			opts.EmailColumn = curateEmail
		}
		if cmd.Flags().Changed("drop") {
			opts.DropColumns = curateDrop
		}

		output := resolveOutput(cfg, curateOutput)
		stats, err := curateFile(cmd.Context(), curateInput, output, opts)
		if err != nil {
			return eris.Wrap(err, "curate")
		}
		formatCurateStats(os.Stdout, output, stats)
		return nil
	},
}

// curateFile curates input into output. Nothing is written when no row
// qualifies.
func curateFile(ctx context.Context, input, output string, opts export.CurateOptions) (export.CurateStats, error) {
	table, err := export.ReadTable(ctx, input)
	if err != nil {
		return export.CurateStats{}, err
	}

	out, stats, err := export.Curate(table, opts)
	if err != nil {
		return stats, err
	}

	err = withOutputLock(output, func() error {
		return export.WriteTable(output, out)
	})
	return stats, err
}

// formatCurateStats writes the filter counts to w.
func formatCurateStats(out io.Writer, path string, s export.CurateStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Rows read:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "  No email:\t%d\n", s.NoEmail)
	_, _ = fmt.Fprintf(w, "  Role-based:\t%d\n", s.RoleBased)
	_, _ = fmt.Fprintf(w, "  Personal:\t%d\n", s.Personal)
	_, _ = fmt.Fprintf(w, "Qualified:\t%d\n", s.Qualified)
	_, _ = fmt.Fprintf(w, "Written:\t%d -> %s\n", s.Sampled, path)
	_ = w.Flush()
}

func init() {
	def := export.DefaultCurateOptions()
	curateCmd.Flags().StringVar(&curateInput, "input", "", "CSV or XLSX to curate")
	curateCmd.Flags().StringVar(&curateOutput, "output", "", "curated CSV or XLSX")
	curateCmd.Flags().IntVar(&curateSample, "sample", def.Sample, "rows to keep (0 = all qualified rows)")
	curateCmd.Flags().Uint64Var(&curateSeed, "seed", def.Seed, "sampling seed")
	curateCmd.Flags().StringVar(&curateEmail, "email-column", def.EmailColumn, "column holding the email")
	curateCmd.Flags().StringSliceVar(&curateDrop, "drop", def.DropColumns, "columns removed from the output")
	_ = curateCmd.MarkFlagRequired("input")
	_ = curateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(curateCmd)
}
