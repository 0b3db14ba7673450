package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-bridge/internal/pipeline"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available lead profiles",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ps, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		formatProfiles(os.Stdout, ps)
		return nil
	},
}

// formatProfiles writes one line per profile to w.
func formatProfiles(out io.Writer, ps pipeline.Profiles) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSOURCE\tDISCOVERY\tPROVIDERS\tDESCRIPTION")
	for _, name := range ps.Names() {
		p := ps[name]
		providers := make([]string, 0, len(p.Providers))
		for _, sc := range p.Providers {
			providers = append(providers, sc.Provider)
		}
		disc := p.Discovery.Kind
		if disc == "" {
			disc = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name,
			p.Source.Kind,
			disc,
			strings.Join(providers, ","),
			p.Description,
		)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
