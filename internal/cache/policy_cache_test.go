package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/domain"
)

func TestMemoryPolicyCacheRoundTrip(t *testing.T) {
	c := NewMemoryPolicyCache()
	ctx := context.Background()

	_, ok, err := c.GetLatest(ctx, "part-1")
	require.NoError(t, err)
	assert.False(t, ok)

	stored := []domain.Policy{{ProductID: "P1", OrderQuantity: 40}}
	require.NoError(t, c.SetLatest(ctx, "part-1", stored))

	got, ok, err := c.GetLatest(ctx, "part-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, 40.0, got[0].OrderQuantity)

	// The cache hands out copies, not aliases of its internal slice.
	got[0].OrderQuantity = 999
	again, _, err := c.GetLatest(ctx, "part-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, again[0].OrderQuantity)
}

func TestNewPolicyCacheDisabled(t *testing.T) {
	c, err := NewPolicyCache(config.CacheConfig{Enabled: false})
	require.NoError(t, err)

	_, ok, err := c.GetLatest(context.Background(), "any")
	require.NoError(t, err)
	assert.False(t, ok, "disabled cache never hits")
	assert.NoError(t, c.SetLatest(context.Background(), "any", nil))
}
