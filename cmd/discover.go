package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-bridge/internal/config"
	"github.com/sells-group/lead-bridge/internal/pipeline"
	"github.com/sells-group/lead-bridge/internal/rank"
	"github.com/sells-group/lead-bridge/internal/source"
	"github.com/sells-group/lead-bridge/internal/waterfall"
)

var (
	discoverInput   string
	discoverOutput  string
	discoverProfile string
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find website domains for a CSV or XLSX of companies",
	Long:  "Reads a file with a company or name column and fills in the website of every row that has none. Rows that already carry a website are kept as they are, so an interrupted run can be resumed on its own output.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prof, err := fileProfile(cfg, discoverProfile, discoverInput)
		if err != nil {
			return err
		}

		opts := pipelineOptions(cfg, prof)
		opts.SkipEnrich = true
		opts.Output = resolveOutput(cfg, discoverOutput)

		return runPipeline(cmd.Context(), os.Stdout, prof, opts)
	},
}

// defaultFileProfile is used by discover and enrich when no --profile is
// given.
func defaultFileProfile() pipeline.Profile {
	return pipeline.Profile{
		Name:      "file",
		Discovery: pipeline.DiscoveryProfile{Kind: pipeline.DiscoveryClearbit},
		Providers: []waterfall.StageConfig{{
			Provider: "hunter",
			Tiers: []rank.Tier{
				{Name: "exec", Keywords: []string{"owner", "founder", "ceo", "president", "chief executive"}},
				{Name: "ops", Keywords: []string{"operations", "general manager", "director"}},
			},
		}},
	}
}

// fileProfile returns the named profile, or the default one, reading its
// entities from input instead of the profile's own source.
func fileProfile(c *config.Config, name, input string) (pipeline.Profile, error) {
	prof := defaultFileProfile()
	if name != "" {
		ps, err := loadProfiles(c)
		if err != nil {
			return pipeline.Profile{}, err
		}
		if prof, err = ps.Get(name); err != nil {
			return pipeline.Profile{}, err
		}
	}
	prof.Source = source.Config{Kind: source.KindFile, Path: input}
	return prof, nil
}

func init() {
	discoverCmd.Flags().StringVar(&discoverInput, "input", "", "input CSV or XLSX")
	discoverCmd.Flags().StringVar(&discoverOutput, "output", "", "output CSV or XLSX")
	discoverCmd.Flags().StringVar(&discoverProfile, "profile", "", "profile whose discovery and denylist to use")
	_ = discoverCmd.MarkFlagRequired("input")
	_ = discoverCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(discoverCmd)
}
