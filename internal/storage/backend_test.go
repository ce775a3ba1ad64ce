package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendFactory opens a fresh engine rooted in dir. Reopening with the
// same dir must see previously written records.
type backendFactory func(t *testing.T, dir string) Backend

func engines() map[string]backendFactory {
	return map[string]backendFactory{
		"sqlite": func(t *testing.T, dir string) Backend {
			b, err := OpenSQLite(filepath.Join(dir, "test.db"))
			require.NoError(t, err)
			return b
		},
		"flatfile": func(t *testing.T, dir string) Backend {
			b, err := OpenFlatFile(filepath.Join(dir, "test.json"))
			require.NoError(t, err)
			return b
		},
	}
}

func testRecord(id string, at time.Time) *Record {
	body, _ := json.Marshal(map[string]string{"receipt_number": "REC-" + id})
	return &Record{ID: id, CreatedAt: at, Status: "pending", Body: body}
}

// Behavioral contract shared by both engines: the queue must observe the
// same ordering and idempotence semantics regardless of which one is active.

func TestBackend_AppendReadAll_InsertionOrder(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
			for i := 0; i < 5; i++ {
				rec := testRecord(fmt.Sprintf("sale-%d", i), base.Add(time.Duration(i)*time.Second))
				require.NoError(t, b.Append(ctx, rec))
				assert.NotZero(t, rec.Seq, "append must assign a sequence")
			}

			got, err := b.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 5)
			for i, rec := range got {
				assert.Equal(t, fmt.Sprintf("sale-%d", i), rec.ID)
				if i > 0 {
					assert.Greater(t, rec.Seq, got[i-1].Seq, "seq must be increasing")
				}
			}
		})
	}
}

func TestBackend_ReadAll_RepeatableWithoutWrites(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			now := time.Now().UTC()
			require.NoError(t, b.Append(ctx, testRecord("a", now)))
			require.NoError(t, b.Append(ctx, testRecord("b", now)))

			first, err := b.ReadAll(ctx)
			require.NoError(t, err)
			second, err := b.ReadAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, first, second)
		})
	}
}

func TestBackend_AppendSameID_Idempotent(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			now := time.Now().UTC()
			first := testRecord("dup", now)
			require.NoError(t, b.Append(ctx, first))

			again := testRecord("dup", now.Add(time.Hour))
			require.NoError(t, b.Append(ctx, again))
			assert.Equal(t, first.Seq, again.Seq, "re-append must reuse the stored seq")

			n, err := b.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestBackend_Remove_UnknownIDIsNoop(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			require.NoError(t, b.Remove(ctx, "never-stored"))

			require.NoError(t, b.Append(ctx, testRecord("x", time.Now().UTC())))
			require.NoError(t, b.Remove(ctx, "x"))
			require.NoError(t, b.Remove(ctx, "x"), "second remove is a no-op")

			n, err := b.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 0, n)
		})
	}
}

func TestBackend_RemovedRecordStaysGoneAfterReopen(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			b := open(t, dir)
			require.NoError(t, b.Append(ctx, testRecord("keep", time.Now().UTC())))
			require.NoError(t, b.Append(ctx, testRecord("gone", time.Now().UTC())))
			require.NoError(t, b.Remove(ctx, "gone"))
			require.NoError(t, b.Close())

			b2 := open(t, dir)
			defer b2.Close()
			got, err := b2.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "keep", got[0].ID)
		})
	}
}

func TestBackend_UpdateStatus(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			require.NoError(t, b.Append(ctx, testRecord("s", time.Now().UTC())))
			require.NoError(t, b.UpdateStatus(ctx, "s", "submitting"))
			require.NoError(t, b.UpdateStatus(ctx, "missing", "submitting"), "unknown id is a no-op")

			got, err := b.ReadAll(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "submitting", got[0].Status)
		})
	}
}

func TestBackend_CountMatchesReadAll(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			b := open(t, t.TempDir())
			defer b.Close()

			for i := 0; i < 3; i++ {
				require.NoError(t, b.Append(ctx, testRecord(fmt.Sprintf("r%d", i), time.Now().UTC())))
			}
			require.NoError(t, b.Remove(ctx, "r1"))

			got, err := b.ReadAll(ctx)
			require.NoError(t, err)
			n, err := b.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, len(got), n)
		})
	}
}

func TestBackend_SeqSurvivesReopen(t *testing.T) {
	for name, open := range engines() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			b := open(t, dir)
			first := testRecord("first", time.Now().UTC())
			require.NoError(t, b.Append(ctx, first))
			require.NoError(t, b.Close())

			b2 := open(t, dir)
			defer b2.Close()
			second := testRecord("second", time.Now().UTC())
			require.NoError(t, b2.Append(ctx, second))
			assert.Greater(t, second.Seq, first.Seq, "seq must keep increasing across restarts")
		})
	}
}
