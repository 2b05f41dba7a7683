package filecache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/trailobs/internal/core/domain"
	"github.com/samirrijal/trailobs/internal/core/ports"
)

func TestStore_RoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "ways:1,2,3,4")
	require.ErrorIs(t, err, domain.ErrCacheMiss)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set(ctx, "ways:1,2,3,4", ports.CacheEntry{Value: []byte(`[{"id":1}]`), CapturedAt: at}))

	got, err := s.Get(ctx, "ways:1,2,3,4")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(got.Value))
	assert.True(t, at.Equal(got.CapturedAt))

	// overwrite
	require.NoError(t, s.Set(ctx, "ways:1,2,3,4", ports.CacheEntry{Value: []byte(`[]`), CapturedAt: at}))
	got, err = s.Get(ctx, "ways:1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got.Value))
}

func TestStore_NoTemporaryFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", ports.CacheEntry{Value: []byte(`1`), CapturedAt: time.Now()}))
	require.NoError(t, s.Ping(context.Background()))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	key, ok := keyOf(files[0].Name())
	require.True(t, ok)
	assert.Equal(t, "k", key)
}

func TestStore_Purge(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()

	put := func(key string, age time.Duration) {
		require.NoError(t, s.Set(ctx, key, ports.CacheEntry{Value: []byte(`1`), CapturedAt: now.Add(-age)}))
	}
	put("observations:a", 9*time.Hour)
	put("observations:b", time.Hour)
	put("ways:a", 9*time.Hour)

	n, err := s.Purge(ctx, "observations:", 8*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Get(ctx, "observations:a")
	assert.ErrorIs(t, err, domain.ErrCacheMiss)
	_, err = s.Get(ctx, "observations:b")
	assert.NoError(t, err)
	_, err = s.Get(ctx, "ways:a")
	assert.NoError(t, err)
}

func TestStore_CorruptFile(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.path("bad"), []byte("not gzip"), 0o644))

	_, err = s.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrCacheMiss)
}
