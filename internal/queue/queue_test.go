package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/till/internal/money"
	"github.com/roach88/till/internal/sale"
	"github.com/roach88/till/internal/storage"
	"github.com/roach88/till/internal/testutil"
)

func newTestQueue(t *testing.T, opts ...Option) *PendingQueue {
	t.Helper()
	backend, err := storage.OpenFlatFile(filepath.Join(t.TempDir(), "queue.json"))
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return New(backend, opts...)
}

func testPayload(receipt string) sale.Payload {
	return sale.Payload{
		ReceiptNumber: receipt,
		Subtotal:      money.FromFloat(500),
		TotalAmount:   money.FromFloat(500),
		AmountPaid:    money.FromFloat(500),
		PaymentMethod: sale.PaymentCash,
		Items: []sale.CartItem{
			{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: money.FromFloat(250)},
		},
		IsOfflineSale: true,
	}
}

func TestEnqueue_AssignsIDTimestampAndStatus(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	ids := testutil.NewFixedIDs("id-1", "id-2")
	q := newTestQueue(t, WithClock(clock.Now), WithIDGenerator(ids.Next))

	rec, err := q.Enqueue(ctx, testPayload("REC1"))
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.OfflineID)
	assert.Equal(t, clock.Now().UTC(), rec.CreatedAt)
	assert.Equal(t, sale.StatusPending, rec.Status)

	got, err := q.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "REC1", got.ReceiptNumber)
	assert.Equal(t, sale.StatusPending, got.Status)
}

func TestInsert_RejectsEmptyOfflineID(t *testing.T) {
	q := newTestQueue(t)
	err := q.Insert(context.Background(), sale.Record{Payload: testPayload("REC1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty offline ID")
}

func TestInsert_StampsZeroCreatedAt(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	q := newTestQueue(t, WithClock(clock.Now))

	rec := sale.NewRecord(testPayload("REC1"), "pre-assigned", time.Time{})
	require.NoError(t, q.Insert(ctx, rec))

	got, err := q.Get(ctx, "pre-assigned")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().UTC(), got.CreatedAt)
}

func TestInsert_SameIDTwiceKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	rec := sale.NewRecord(testPayload("REC1"), "dup", time.Now().UTC())
	require.NoError(t, q.Insert(ctx, rec))
	require.NoError(t, q.Insert(ctx, rec))

	n, err := q.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPeekOrdered_OldestFirst(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	ids := testutil.NewFixedIDs("id-1", "id-2", "id-3")
	q := newTestQueue(t, WithClock(clock.Now), WithIDGenerator(ids.Next))

	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(ctx, testPayload(fmt.Sprintf("REC%d", i)))
		require.NoError(t, err)
		clock.Advance(time.Minute)
	}

	got, err := q.PeekOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "REC1", got[0].ReceiptNumber)
	assert.Equal(t, "REC2", got[1].ReceiptNumber)
	assert.Equal(t, "REC3", got[2].ReceiptNumber)
}

func TestPeekOrdered_EqualTimestampsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	clock := testutil.NewClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	ids := testutil.NewFixedIDs("id-1", "id-2", "id-3")
	q := newTestQueue(t, WithClock(clock.Now), WithIDGenerator(ids.Next))

	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(ctx, testPayload(fmt.Sprintf("REC%d", i)))
		require.NoError(t, err)
	}

	got, err := q.PeekOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, fmt.Sprintf("id-%d", i+1), rec.OfflineID)
	}
}

func TestOrderSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")

	backend, err := storage.OpenFlatFile(path)
	require.NoError(t, err)
	clock := testutil.NewClock(time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC))
	q := New(backend, WithClock(clock.Now))
	for i := 1; i <= 3; i++ {
		_, err := q.Enqueue(ctx, testPayload(fmt.Sprintf("REC%d", i)))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	require.NoError(t, backend.Close())

	reopened, err := storage.OpenFlatFile(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := New(reopened).PeekOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "REC1", got[0].ReceiptNumber)
	assert.Equal(t, "REC3", got[2].ReceiptNumber)
}

func TestMarkTransitions(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, WithIDGenerator(testutil.NewFixedIDs("id-1").Next))

	_, err := q.Enqueue(ctx, testPayload("REC1"))
	require.NoError(t, err)

	require.NoError(t, q.MarkSubmitting(ctx, "id-1"))
	got, err := q.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, sale.StatusSubmitting, got.Status)

	require.NoError(t, q.MarkFailed(ctx, "id-1"))
	got, err = q.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, sale.StatusFailed, got.Status)

	require.NoError(t, q.MarkPending(ctx, "id-1"))
	got, err = q.Get(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, sale.StatusPending, got.Status)
}

func TestMark_UnknownIDIsNoop(t *testing.T) {
	q := newTestQueue(t)
	assert.NoError(t, q.MarkSubmitting(context.Background(), "ghost"))
}

func TestGet_UnknownIDReturnsErrNotFound(t *testing.T) {
	q := newTestQueue(t)
	_, err := q.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemove_Idempotent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, WithIDGenerator(testutil.NewFixedIDs("id-1").Next))

	_, err := q.Enqueue(ctx, testPayload("REC1"))
	require.NoError(t, err)

	require.NoError(t, q.Remove(ctx, "id-1"))
	require.NoError(t, q.Remove(ctx, "id-1"))

	empty, err := q.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestClear_RemovesEverything(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	for i := 1; i <= 4; i++ {
		_, err := q.Enqueue(ctx, testPayload(fmt.Sprintf("REC%d", i)))
		require.NoError(t, err)
	}

	n, err := q.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	empty, err := q.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestNewOfflineID_DefaultIsUUIDv7TimeOrdered(t *testing.T) {
	q := newTestQueue(t)
	a := q.NewOfflineID()
	b := q.NewOfflineID()
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "v7 IDs issued in sequence must sort in issue order")
}

func TestCapability_ReportsBackend(t *testing.T) {
	q := newTestQueue(t)
	assert.Equal(t, storage.FlatKV, q.Capability())
}
