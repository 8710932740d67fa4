package resolver

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/keel/internal/truth"
	"github.com/dyluth/keel/internal/version"
	"github.com/dyluth/keel/pkg/ledger"
)

func setupResolver(t *testing.T) *ledger.Client {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := ledger.NewClient(&redis.Options{Addr: mr.Addr()}, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func seedVersion(t *testing.T, client *ledger.Client) *ledger.TruthVersion {
	t.Helper()
	ctx := context.Background()

	base, err := truth.NewStore(client).Create(ctx, &ledger.ProjectTruth{
		WhatWereBuilding: "A bookkeeping tool",
		Industry:         "bookkeeping",
	})
	require.NoError(t, err)

	proposed := *base
	proposed.NotThis = []string{"a crypto wallet"}
	v, err := version.NewManager(client).CreateVersion(ctx, &proposed, "exclude wallets", "cam")
	require.NoError(t, err)
	return v
}

func TestResolveVersionID(t *testing.T) {
	client := setupResolver(t)
	ctx := context.Background()
	v := seedVersion(t, client)

	t.Run("full UUID passes through", func(t *testing.T) {
		resolved, err := ResolveVersionID(ctx, client, v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.ID, resolved)
	})

	t.Run("unique prefix resolves", func(t *testing.T) {
		resolved, err := ResolveVersionID(ctx, client, v.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, v.ID, resolved)
	})

	t.Run("too-short prefix is rejected", func(t *testing.T) {
		_, err := ResolveVersionID(ctx, client, v.ID[:3])
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("unknown prefix is not found", func(t *testing.T) {
		_, err := ResolveVersionID(ctx, client, "zzzzzz")
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unknown full UUID errors", func(t *testing.T) {
		_, err := ResolveVersionID(ctx, client, "00000000-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "version not found")
	})
}

func TestResolveResolutionID(t *testing.T) {
	client := setupResolver(t)
	ctx := context.Background()

	res := &ledger.Resolution{
		ID:       "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		Strategy: ledger.StrategyInformational,
		Status:   ledger.ResolutionMonitoring,
	}
	require.NoError(t, client.PutResolution(ctx, res))

	resolved, err := ResolveResolutionID(ctx, client, "6ba7b8")
	require.NoError(t, err)
	assert.Equal(t, res.ID, resolved)

	_, err = ResolveResolutionID(ctx, client, "ffffff")
	assert.True(t, IsNotFoundError(err))
}

func TestFormatAmbiguousError(t *testing.T) {
	err := &AmbiguousError{ShortID: "abc123", Matches: []string{"abc123-1", "abc123-2"}}
	msg := FormatAmbiguousError(err)
	assert.Contains(t, msg, "abc123-1")
	assert.Contains(t, msg, "longer prefix")
	assert.True(t, IsAmbiguousError(err))
}
