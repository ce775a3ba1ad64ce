package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/roach88/till/internal/connectivity"
	"github.com/roach88/till/internal/queue"
	"github.com/roach88/till/internal/remote"
	"github.com/roach88/till/internal/sale"
)

// Outcome is the result of routing one checkout.
type Outcome struct {
	// Accepted is true whenever the sale is safe: either confirmed by the
	// backend or durably queued for later sync.
	Accepted bool `json:"accepted"`
	// Synced is true only when the backend confirmed the sale immediately.
	Synced bool `json:"synced"`
	// OfflineID identifies the queued record when Synced is false.
	OfflineID     string `json:"offline_id,omitempty"`
	ReceiptNumber string `json:"receipt_number"`
}

// DrainResult summarizes one drain attempt.
type DrainResult struct {
	// Skipped is true when another drain was already active.
	Skipped bool `json:"skipped"`
	// Submitted is the number of records confirmed and removed.
	Submitted int `json:"submitted"`
	// Failed is the number of records definitively rejected during this
	// drain.
	Failed int `json:"failed"`
	// SkippedFailed is the number of records already flagged failed before
	// this drain and passed over without a submission attempt.
	SkippedFailed int `json:"skipped_failed"`
	// Remaining is the number of records still resident after the drain.
	Remaining int `json:"remaining"`
}

// Status is the engine state surfaced to the UI and the CLI.
type Status struct {
	Online       bool      `json:"online"`
	Syncing      bool      `json:"syncing"`
	PendingCount int       `json:"pending_count"`
	FailedCount  int       `json:"failed_count"`
	Capability   string    `json:"storage_capability"`
	LastSyncAt   time.Time `json:"last_sync_at,omitzero"`
	LastError    string    `json:"last_error,omitempty"`
}

// Engine drains the pending-sale queue to the backend.
//
// All sync state (draining flag, last error) lives on the instance; UI
// observers read it through Status rather than through ambient globals.
type Engine struct {
	queue    *queue.PendingQueue
	remote   remote.Submitter
	monitor  *connectivity.Monitor
	interval time.Duration
	logger   *zap.Logger

	draining atomic.Bool

	mu         sync.Mutex
	lastSyncAt time.Time
	lastErr    string
}

// New creates an Engine. interval is the periodic drain tick.
func New(q *queue.PendingQueue, submitter remote.Submitter, monitor *connectivity.Monitor, interval time.Duration, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		queue:    q,
		remote:   submitter,
		monitor:  monitor,
		interval: interval,
		logger:   logger,
	}
}

// SubmitOrQueue routes one completed checkout: immediate submission when
// online, otherwise (or on any submission failure) a durable enqueue.
//
// Connectivity-class failures never surface as errors here - queueing is
// the designed recovery path. The only error return is a queueing failure
// itself (storage exhaustion), in which case the caller must keep the cart
// intact so the user can retry.
func (e *Engine) SubmitOrQueue(ctx context.Context, p sale.Payload) (Outcome, error) {
	offlineID := e.queue.NewOfflineID()

	if e.monitor.Current() == connectivity.Online {
		err := e.remote.SubmitSale(ctx, p, offlineID)
		if err == nil {
			e.logger.Info("sale synced",
				zap.String("receipt_number", p.ReceiptNumber),
				zap.String("offline_id", offlineID))
			return Outcome{Accepted: true, Synced: true, ReceiptNumber: p.ReceiptNumber}, nil
		}

		e.logger.Warn("online submission failed, saving offline",
			zap.String("receipt_number", p.ReceiptNumber),
			zap.Error(err))
		if errors.Is(err, remote.ErrUnavailable) {
			// Flip to offline now instead of waiting for the next probe.
			e.monitor.SetState(connectivity.Offline)
		}
	}

	p.IsOfflineSale = true
	// Zero CreatedAt lets the queue stamp it with its own clock.
	rec := sale.NewRecord(p, offlineID, time.Time{})
	if err := e.queue.Insert(ctx, rec); err != nil {
		return Outcome{}, fmt.Errorf("queue sale %s: %w", p.ReceiptNumber, err)
	}

	e.logger.Info("sale saved offline",
		zap.String("receipt_number", p.ReceiptNumber),
		zap.String("offline_id", offlineID))
	return Outcome{
		Accepted:      true,
		Synced:        false,
		OfflineID:     offlineID,
		ReceiptNumber: p.ReceiptNumber,
	}, nil
}

// Drain attempts to submit every queued record in chronological order.
//
// Mutual exclusion: a Drain while another is active performs no storage or
// network operations and returns Skipped. A drain stops immediately on the
// first connectivity-class failure, returning that record to pending and
// leaving later records untouched. Definitively rejected records are marked
// failed and skipped thereafter.
func (e *Engine) Drain(ctx context.Context) (res DrainResult, _ error) {
	if !e.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}, nil
	}
	defer e.draining.Store(false)

	// Named result: the deferred bookkeeping fills in Remaining.
	defer e.fillRemaining(ctx, &res)

	if e.monitor.Current() != connectivity.Online {
		// No submission was attempted; lastSyncAt is left alone.
		return res, nil
	}
	defer e.stampLastSync()

	records, err := e.queue.PeekOrdered(ctx)
	if err != nil {
		e.setLastError(err)
		return res, err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			e.setLastError(err)
			return res, err
		}
		if rec.Status == sale.StatusFailed {
			// Manual-resolution pile; not retried automatically.
			res.SkippedFailed++
			continue
		}

		if err := e.queue.MarkSubmitting(ctx, rec.OfflineID); err != nil {
			e.setLastError(err)
			return res, err
		}

		err := e.remote.SubmitSale(ctx, rec.Payload, rec.OfflineID)
		switch {
		case err == nil:
			if err := e.queue.Remove(ctx, rec.OfflineID); err != nil {
				e.setLastError(err)
				return res, err
			}
			res.Submitted++
			e.logger.Info("synced sale", zap.String("receipt_number", rec.ReceiptNumber))

		case errors.Is(err, remote.ErrRejected):
			if markErr := e.queue.MarkFailed(ctx, rec.OfflineID); markErr != nil {
				e.setLastError(markErr)
				return res, markErr
			}
			res.Failed++
			e.logger.Error("sale rejected, flagged for manual resolution",
				zap.String("receipt_number", rec.ReceiptNumber),
				zap.Error(err))

		default:
			// Connectivity-class failure (or ambiguous timeout): back to
			// pending and stop - later records wait for the next drain.
			// Absorbed, not returned: queued retry is normal operation.
			if markErr := e.queue.MarkPending(ctx, rec.OfflineID); markErr != nil {
				e.setLastError(markErr)
				return res, markErr
			}
			e.logger.Warn("drain halted on submission failure",
				zap.String("receipt_number", rec.ReceiptNumber),
				zap.Error(err))
			e.setLastError(err)
			return res, nil
		}
	}

	e.setLastError(nil)
	return res, nil
}

// fillRemaining counts what is still resident, on every drain exit path.
func (e *Engine) fillRemaining(ctx context.Context, res *DrainResult) {
	if n, err := e.queue.Size(ctx); err == nil {
		res.Remaining = n
	}
}

// stampLastSync records that a drain actually ran against the backend.
func (e *Engine) stampLastSync() {
	e.mu.Lock()
	e.lastSyncAt = time.Now().UTC()
	e.mu.Unlock()
}

func (e *Engine) setLastError(cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cause != nil {
		e.lastErr = cause.Error()
	} else {
		e.lastErr = ""
	}
}

// ForceSync is the manual trigger exposed to the UI; identical to an
// automatic drain but callable regardless of the periodic timer's phase.
func (e *Engine) ForceSync(ctx context.Context) (DrainResult, error) {
	return e.Drain(ctx)
}

// Retry returns a definitively rejected record to pending so the next
// drain picks it up again. Returns queue.ErrNotFound for unknown IDs.
func (e *Engine) Retry(ctx context.Context, offlineID string) error {
	rec, err := e.queue.Get(ctx, offlineID)
	if err != nil {
		return err
	}
	if rec.Status != sale.StatusFailed {
		return nil
	}
	return e.queue.MarkPending(ctx, offlineID)
}

// Run drives the engine until ctx is cancelled: an initial drain, a drain
// on every transition to online, and a drain on each interval tick.
func (e *Engine) Run(ctx context.Context) {
	unsubOnline := e.monitor.OnOnline(func() {
		if _, err := e.Drain(ctx); err != nil {
			e.logger.Warn("drain after reconnect", zap.Error(err))
		}
	})
	defer unsubOnline()

	unsubOffline := e.monitor.OnOffline(func() {
		e.logger.Info("offline - sales will be queued")
	})
	defer unsubOffline()

	if _, err := e.Drain(ctx); err != nil {
		e.logger.Warn("initial drain", zap.Error(err))
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.Drain(ctx); err != nil {
				e.logger.Warn("periodic drain", zap.Error(err))
			}
		}
	}
}

// Status reports live engine state for dashboards: pending counts reflect
// the queue directly and are independent of drain state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	records, err := e.queue.PeekOrdered(ctx)
	if err != nil {
		return Status{}, err
	}

	var failed int
	for _, rec := range records {
		if rec.Status == sale.StatusFailed {
			failed++
		}
	}

	e.mu.Lock()
	lastSyncAt, lastErr := e.lastSyncAt, e.lastErr
	e.mu.Unlock()

	return Status{
		Online:       e.monitor.Current() == connectivity.Online,
		Syncing:      e.draining.Load(),
		PendingCount: len(records) - failed,
		FailedCount:  failed,
		Capability:   string(e.queue.Capability()),
		LastSyncAt:   lastSyncAt,
		LastError:    lastErr,
	}, nil
}
