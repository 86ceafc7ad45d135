package enjarify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enjarify-go/enjarify/internal/config"
)

func TestNewConfigEnablesEveryOptimization(t *testing.T) {
	cfg := NewConfig()
	require.Equal(t, config.All(), cfg.Options())
}

func TestNewCacheNonPositiveSizeStillBuilds(t *testing.T) {
	c, err := NewCache(0)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNewCachePositiveSizeBuilds(t *testing.T) {
	c, err := NewCache(10)
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestNewTranslatorBuildsWithoutExplicitLogger(t *testing.T) {
	tr, err := NewTranslator(NewConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, tr)
	require.NoError(t, tr.Close())
}

func TestNewTranslatorAcceptsAnExternalCache(t *testing.T) {
	cache, err := NewCache(5)
	require.NoError(t, err)
	tr, err := NewTranslator(NewConfig(), cache)
	require.NoError(t, err)
	require.NotNil(t, tr)
}

func TestDexRejectsMalformedInput(t *testing.T) {
	tr, err := NewTranslator(NewConfig(), nil)
	require.NoError(t, err)
	// Long enough to clear the header fields without slicing out of
	// bounds, but header_size is zero instead of the required 0x70.
	_, err = tr.Dex(context.Background(), make([]byte, 128))
	require.Error(t, err)
}
