package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/config"
)

func TestOptionFlagsToOptionsAllFalseIsZero(t *testing.T) {
	var f optionFlags
	require.Equal(t, config.Options(0), f.toOptions())
}

func TestOptionFlagsToOptionsSetsOnlyTheEnabledBits(t *testing.T) {
	f := optionFlags{dup2ize: true, splitPool: true}
	got := f.toOptions()
	require.True(t, got&config.Dup2ize != 0)
	require.True(t, got&config.SplitPool != 0)
	require.True(t, got&config.InlineConsts == 0)
	require.True(t, got&config.CopyPropagation == 0)
}

func TestOptionFlagsToOptionsAllTrueMatchesAll(t *testing.T) {
	f := optionFlags{
		inlineConsts:     true,
		pruneStoreLoads:  true,
		copyPropagation:  true,
		removeUnusedRegs: true,
		dup2ize:          true,
		sortRegisters:    true,
		splitPool:        true,
		delayConsts:      true,
	}
	require.Equal(t, config.All(), f.toOptions())
}

func TestNewTranslateCmdRejectsZeroArgs(t *testing.T) {
	cmd := newTranslateCmd()
	cmd.SetArgs(nil)
	err := cmd.Args(cmd, nil)
	require.Error(t, err)
}

func TestNewRootCmdRegistersTranslateSubcommand(t *testing.T) {
	root := newRootCmd()
	found, _, err := root.Find([]string{"translate"})
	require.NoError(t, err)
	require.Equal(t, "translate", found.Name())
}
