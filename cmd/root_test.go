package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"run", "discover", "enrich", "curate", "profiles", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "lead-bridge", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"profile", "test", "limit", "max-calls", "output", "concurrency"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s", name)
	}
	assert.Equal(t, "false", runCmd.Flags().Lookup("test").DefValue)
	assert.Equal(t, "0", runCmd.Flags().Lookup("max-calls").DefValue)
	assert.Contains(t, runCmd.Flags().Lookup("max-calls").Usage, "lookups")
	assert.Contains(t, enrichCmd.Flags().Lookup("max-calls").Usage, "lookups")
}

func TestFileCommands_RequiredFlags(t *testing.T) {
	for _, c := range []struct {
		name  string
		flags []string
	}{
		{"discover", []string{"input", "output", "profile"}},
		{"enrich", []string{"input", "output", "profile", "max-calls"}},
		{"curate", []string{"input", "output", "sample", "seed", "drop"}},
	} {
		cmd, _, err := rootCmd.Find([]string{c.name})
		require.NoError(t, err)
		for _, f := range c.flags {
			assert.NotNil(t, cmd.Flags().Lookup(f), "%s should have --%s", c.name, f)
		}
	}
}

func TestCurateCommand_Defaults(t *testing.T) {
	assert.Equal(t, "30", curateCmd.Flags().Lookup("sample").DefValue)
	assert.Equal(t, "42", curateCmd.Flags().Lookup("seed").DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
}
