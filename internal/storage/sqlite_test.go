package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_Capability(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, Indexed, b.Capability())
}

func TestSQLite_ReadAll_EmptyReturnsEmptySlice(t *testing.T) {
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer b.Close()

	got, err := b.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSQLite_TimestampRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer b.Close()

	at := time.Date(2026, 8, 29, 14, 30, 15, 123456789, time.UTC)
	require.NoError(t, b.Append(ctx, testRecord("ts", at)))

	got, err := b.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, at.Equal(got[0].CreatedAt), "expected %v, got %v", at, got[0].CreatedAt)
}

func TestSQLite_SchemaVersionStampedOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	b, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, b.Append(context.Background(), testRecord("a", time.Now().UTC())))
	require.NoError(t, b.Close())

	// Reopening an already-migrated database must not rerun the schema
	// or disturb existing rows.
	b2, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b2.Close()

	n, err := b2.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
