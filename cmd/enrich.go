package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	enrichInput    string
	enrichOutput   string
	enrichProfile  string
	enrichMaxCalls int
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Find contacts for a CSV or XLSX that already has websites",
	Long:  "Runs the provider waterfall over every row of the input. Rows that already have a contact email keep it and cost no calls.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := fileProfile(cfg, enrichProfile, enrichInput)
		if err != nil {
			return err
		}

		opts := pipelineOptions(cfg, prof)
		opts.SkipDiscovery = true
		if enrichMaxCalls > 0 {
			opts.MaxCalls = enrichMaxCalls
		}
		opts.Output = resolveOutput(cfg, enrichOutput)

		return runPipeline(cmd.Context(), os.Stdout, prof, opts)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "input CSV or XLSX with a website column")
	enrichCmd.Flags().StringVar(&enrichOutput, "output", "", "output CSV or XLSX")
	enrichCmd.Flags().StringVar(&enrichProfile, "profile", "", "profile whose providers, tiers and columns to use")
	enrichCmd.Flags().IntVar(&enrichMaxCalls, "max-calls", 0, "hard cap on provider lookups; retries and multi-request lookups count once (0 = config default)")
	_ = enrichCmd.MarkFlagRequired("input")
	_ = enrichCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(enrichCmd)
}
