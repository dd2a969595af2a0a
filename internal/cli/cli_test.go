package cli

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["calc"])
	assert.True(t, names["export"])
}

func TestExportCmd_RequiredFlags(t *testing.T) {
	cmd, _, err := RootCmd.Find([]string{"export"})
	require.NoError(t, err)

	for _, name := range []string{"bed", "out"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
	}
	assert.Equal(t, "24h", cmd.Flags().Lookup("since").DefValue)
}

func TestCalcCmd_Flags(t *testing.T) {
	cmd, _, err := RootCmd.Find([]string{"calc"})
	require.NoError(t, err)

	for _, name := range []string{"bed", "drops", "ml-per-hr", "volume", "drop-factor", "weight", "age"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "-1", cmd.Flags().Lookup("age").DefValue)
}
