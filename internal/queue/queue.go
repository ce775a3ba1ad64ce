// Package queue provides the durable FIFO queue of sales awaiting
// transmission. It layers sale-domain semantics (sync status, offline IDs,
// chronological ordering) on the generic record API of internal/storage.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/till/internal/sale"
	"github.com/roach88/till/internal/storage"
)

// ErrNotFound is returned when a record with the given offline ID is not
// resident in the queue.
var ErrNotFound = errors.New("sale not found in queue")

// PendingQueue is a durable FIFO queue of sale records.
//
// Only this package writes records to the storage backend; the sync engine
// mutates records exclusively through these methods.
type PendingQueue struct {
	backend storage.Backend
	now     func() time.Time
	newID   func() string
}

// Option configures a PendingQueue.
type Option func(*PendingQueue)

// WithClock overrides the creation-timestamp source. Tests use this for
// deterministic ordering.
func WithClock(now func() time.Time) Option {
	return func(q *PendingQueue) { q.now = now }
}

// WithIDGenerator overrides the offline-ID source.
func WithIDGenerator(newID func() string) Option {
	return func(q *PendingQueue) { q.newID = newID }
}

// New creates a PendingQueue over the given backend.
//
// The default offline-ID generator issues UUIDv7: the embedded timestamp
// keeps IDs monotonic across restarts while the random suffix protects
// against clock rollback collisions.
func New(backend storage.Backend, opts ...Option) *PendingQueue {
	q := &PendingQueue{
		backend: backend,
		now:     time.Now,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// NewOfflineID issues a fresh offline ID without touching storage. The sync
// engine assigns the ID before an immediate submission attempt so the same
// idempotency key is reused if the sale later has to be queued.
func (q *PendingQueue) NewOfflineID() string {
	return q.newID()
}

// Enqueue assigns an offline ID and creation timestamp, then stores the
// payload as a pending record. It returns only after the record is durable.
func (q *PendingQueue) Enqueue(ctx context.Context, p sale.Payload) (sale.Record, error) {
	rec := sale.NewRecord(p, q.newID(), q.now().UTC())
	if err := q.Insert(ctx, rec); err != nil {
		return sale.Record{}, err
	}
	return rec, nil
}

// Insert stores an already-built record (pre-assigned offline ID).
// Inserting the same offline ID twice is a no-op.
func (q *PendingQueue) Insert(ctx context.Context, rec sale.Record) error {
	if rec.OfflineID == "" {
		return errors.New("insert sale: empty offline ID")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = q.now().UTC()
	}
	if rec.Status == "" {
		rec.Status = sale.StatusPending
	}

	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("insert sale %s: encode payload: %w", rec.OfflineID, err)
	}

	stored := storage.Record{
		ID:        rec.OfflineID,
		CreatedAt: rec.CreatedAt,
		Status:    string(rec.Status),
		Body:      body,
	}
	if err := q.backend.Append(ctx, &stored); err != nil {
		return fmt.Errorf("insert sale %s: %w", rec.OfflineID, err)
	}
	return nil
}

// PeekOrdered returns all resident records oldest-first by creation time,
// ties broken by storage insertion order. A failed submission never reorders
// the queue: the oldest unsent record is always retried first.
func (q *PendingQueue) PeekOrdered(ctx context.Context) ([]sale.Record, error) {
	stored, err := q.backend.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	records := make([]sale.Record, 0, len(stored))
	for _, sr := range stored {
		rec, err := decodeRecord(sr)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	// ReadAll is already insertion-ordered; a stable sort preserves that
	// order as the tiebreak for equal timestamps.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

// Get returns one resident record by offline ID.
func (q *PendingQueue) Get(ctx context.Context, offlineID string) (sale.Record, error) {
	stored, err := q.backend.ReadAll(ctx)
	if err != nil {
		return sale.Record{}, fmt.Errorf("read queue: %w", err)
	}
	for _, sr := range stored {
		if sr.ID == offlineID {
			return decodeRecord(sr)
		}
	}
	return sale.Record{}, fmt.Errorf("get sale %s: %w", offlineID, ErrNotFound)
}

// MarkSubmitting transitions a record to the submitting status.
// Idempotent; unknown IDs are a no-op.
func (q *PendingQueue) MarkSubmitting(ctx context.Context, offlineID string) error {
	return q.mark(ctx, offlineID, sale.StatusSubmitting)
}

// MarkPending returns a record to the pending status after a retryable
// failure. Idempotent; unknown IDs are a no-op.
func (q *PendingQueue) MarkPending(ctx context.Context, offlineID string) error {
	return q.mark(ctx, offlineID, sale.StatusPending)
}

// MarkFailed flags a record as definitively rejected by the backend.
// Failed records are skipped by automatic drains until manually retried.
func (q *PendingQueue) MarkFailed(ctx context.Context, offlineID string) error {
	return q.mark(ctx, offlineID, sale.StatusFailed)
}

func (q *PendingQueue) mark(ctx context.Context, offlineID string, status sale.SyncStatus) error {
	if err := q.backend.UpdateStatus(ctx, offlineID, string(status)); err != nil {
		return fmt.Errorf("mark sale %s %s: %w", offlineID, status, err)
	}
	return nil
}

// Remove deletes a record after the backend confirmed acceptance.
// Idempotent; removing an unknown ID is a no-op.
func (q *PendingQueue) Remove(ctx context.Context, offlineID string) error {
	if err := q.backend.Remove(ctx, offlineID); err != nil {
		return fmt.Errorf("remove sale %s: %w", offlineID, err)
	}
	return nil
}

// Clear removes every resident record. Exposed for operator reset flows.
func (q *PendingQueue) Clear(ctx context.Context) (int, error) {
	stored, err := q.backend.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("read queue: %w", err)
	}
	for _, sr := range stored {
		if err := q.backend.Remove(ctx, sr.ID); err != nil {
			return 0, fmt.Errorf("clear queue: %w", err)
		}
	}
	return len(stored), nil
}

// Size returns the number of resident records.
func (q *PendingQueue) Size(ctx context.Context) (int, error) {
	n, err := q.backend.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}

// IsEmpty reports whether the queue has no resident records.
func (q *PendingQueue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Capability reports which storage engine currently backs the queue.
func (q *PendingQueue) Capability() storage.Capability {
	return q.backend.Capability()
}

func decodeRecord(sr storage.Record) (sale.Record, error) {
	var p sale.Payload
	if err := json.Unmarshal(sr.Body, &p); err != nil {
		return sale.Record{}, fmt.Errorf("decode sale %s: %w", sr.ID, err)
	}
	return sale.Record{
		OfflineID:     sr.ID,
		ReceiptNumber: p.ReceiptNumber,
		CreatedAt:     sr.CreatedAt,
		Status:        sale.SyncStatus(sr.Status),
		Payload:       p,
	}, nil
}
