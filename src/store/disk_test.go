package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDiskRestart checks that pastes and the id counter survive a restart.
func TestDiskRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	d1, err := NewDiskStorage(&DiskConfig{DataDir: dir})
	require.NoError(t, err)
	id1, err := d1.Create(ctx, newPaste(1))
	require.NoError(t, err)
	id2, err := d1.Create(ctx, newPaste(2))
	require.NoError(t, err)
	require.NoError(t, d1.Delete(ctx, id2))

	d2, err := NewDiskStorage(&DiskConfig{DataDir: dir})
	require.NoError(t, err)
	pastes, err := d2.List(ctx)
	require.NoError(t, err)
	require.Len(t, pastes, 1)
	assert.Equal(t, id1, pastes[0].ID)

	id3, err := d2.Create(ctx, newPaste(3))
	require.NoError(t, err)
	assert.Greater(t, id3, id2)
}

// TestDiskCounterFallback checks that a data dir without the counter file
// continues from the highest paste id.
func TestDiskCounterFallback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	d1, err := NewDiskStorage(&DiskConfig{DataDir: dir})
	require.NoError(t, err)
	_, err = d1.Create(ctx, newPaste(1))
	require.NoError(t, err)
	last, err := d1.Create(ctx, newPaste(2))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "meta", lastIDKey)))

	d2, err := NewDiskStorage(&DiskConfig{DataDir: dir})
	require.NoError(t, err)
	next, err := d2.Create(ctx, newPaste(3))
	require.NoError(t, err)
	assert.Equal(t, last+1, next)
}

func TestDiskMissingDir(t *testing.T) {
	_, err := NewDiskStorage(&DiskConfig{DataDir: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err)
}
