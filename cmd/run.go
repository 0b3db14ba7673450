package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	runProfile     string
	runTest        bool
	runLimit       int
	runMaxCalls    int
	runOutput      string
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a lead profile end to end",
	Long:  "Loads the profile's entities, discovers missing domains, enriches contacts through the provider waterfall and writes the output file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		prof, err := profiles.Get(runProfile)
		if err != nil {
			return err
		}

		opts := pipelineOptions(cfg, prof)
		opts.Test = runTest
		opts.Limit = runLimit
		if runTest {
			// The profile's test cap wins over the configured budget.
			opts.MaxCalls = 0
		}
		if runMaxCalls > 0 {
			opts.MaxCalls = runMaxCalls
		}
		if runConcurrency > 0 {
			opts.Concurrency = runConcurrency
		}
		output := runOutput
		if output == "" {
			output = prof.OutputPath(runTest)
		}
		opts.Output = resolveOutput(cfg, output)

		return runPipeline(cmd.Context(), os.Stdout, prof, opts)
	},
}

func init() {
	runCmd.Flags().StringVar(&runProfile, "profile", "", "profile name (see `lead-bridge profiles`)")
	runCmd.Flags().BoolVar(&runTest, "test", false, "small trial run using the profile's test limits")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max entities to load (0 = profile default)")
	runCmd.Flags().IntVar(&runMaxCalls, "max-calls", 0, "hard cap on provider lookups; retries and multi-request lookups count once (0 = config/profile default)")
	runCmd.Flags().StringVar(&runOutput, "output", "", "output file, .csv or .xlsx (default from profile)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "entities enriched in parallel (0 = config default)")
	_ = runCmd.MarkFlagRequired("profile")
	rootCmd.AddCommand(runCmd)
}
