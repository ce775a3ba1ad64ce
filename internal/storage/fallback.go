package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Fallback wraps the preferred (Indexed) engine and downgrades permanently
// to the flat-file engine the first time any preferred-engine operation
// fails. The downgrade is sticky for the process lifetime: once degraded,
// the preferred engine is never consulted again, even for reads. Context
// cancellation does not count as an engine failure; it is returned to the
// caller with the preferred engine intact.
//
// Records already written to the preferred engine before the downgrade are
// not migrated; they stay in the SQLite file and the downgrade log line
// names it. Migrating through an engine that just failed risks making a bad
// situation worse, so recovery is left to an operator with the stranded
// database path in hand.
type Fallback struct {
	mu        sync.Mutex
	preferred Backend
	fb        Backend
	fbPath    string
	degraded  bool
	logger    *zap.Logger
}

// NewFallback wraps preferred with a lazy flat-file fallback at fbPath.
func NewFallback(preferred Backend, fbPath string, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{preferred: preferred, fbPath: fbPath, logger: logger}
}

// active returns the engine to use, opening the fallback on first need.
// An error is only possible when degraded and the fallback cannot open -
// that is storage exhaustion, surfaced to the caller as a hard failure.
func (f *Fallback) active() (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked()
}

func (f *Fallback) activeLocked() (Backend, error) {
	if !f.degraded {
		return f.preferred, nil
	}
	if f.fb == nil {
		fb, err := OpenFlatFile(f.fbPath)
		if err != nil {
			return nil, fmt.Errorf("open fallback store: %w", err)
		}
		f.fb = fb
	}
	return f.fb, nil
}

// degradable reports whether err indicates an engine fault. Context
// cancellation comes from the caller (a disconnected client, a shutdown)
// and says nothing about storage health, so it never triggers the
// permanent downgrade.
func degradable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// degrade records a preferred-engine failure and switches to the fallback.
// Returns the fallback engine so the failing operation can be retried on it.
func (f *Fallback) degrade(op string, cause error) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.degraded {
		f.degraded = true
		f.logger.Error("indexed store failed, degrading to flat store for the rest of this process",
			zap.String("operation", op),
			zap.String("stranded_store", "pending-sales.db"),
			zap.Error(cause))
		if f.preferred != nil {
			if err := f.preferred.Close(); err != nil {
				f.logger.Warn("closing failed indexed store", zap.Error(err))
			}
		}
	}
	return f.activeLocked()
}

// Append stores one record, downgrading on a preferred-engine failure.
func (f *Fallback) Append(ctx context.Context, rec *Record) error {
	b, err := f.active()
	if err != nil {
		return err
	}
	if err := b.Append(ctx, rec); err != nil {
		if b.Capability() != Indexed || !degradable(err) {
			return err
		}
		b, derr := f.degrade("append", err)
		if derr != nil {
			return derr
		}
		return b.Append(ctx, rec)
	}
	return nil
}

// ReadAll reads from the active engine only. After a downgrade the indexed
// engine's records are stranded and no longer visible here.
func (f *Fallback) ReadAll(ctx context.Context) ([]Record, error) {
	b, err := f.active()
	if err != nil {
		return nil, err
	}
	recs, err := b.ReadAll(ctx)
	if err != nil {
		if b.Capability() != Indexed || !degradable(err) {
			return nil, err
		}
		b, derr := f.degrade("readAll", err)
		if derr != nil {
			return nil, derr
		}
		return b.ReadAll(ctx)
	}
	return recs, nil
}

// UpdateStatus updates one record's status on the active engine.
func (f *Fallback) UpdateStatus(ctx context.Context, id, status string) error {
	b, err := f.active()
	if err != nil {
		return err
	}
	if err := b.UpdateStatus(ctx, id, status); err != nil {
		if b.Capability() != Indexed || !degradable(err) {
			return err
		}
		b, derr := f.degrade("updateStatus", err)
		if derr != nil {
			return derr
		}
		return b.UpdateStatus(ctx, id, status)
	}
	return nil
}

// Remove deletes one record on the active engine.
func (f *Fallback) Remove(ctx context.Context, id string) error {
	b, err := f.active()
	if err != nil {
		return err
	}
	if err := b.Remove(ctx, id); err != nil {
		if b.Capability() != Indexed || !degradable(err) {
			return err
		}
		b, derr := f.degrade("remove", err)
		if derr != nil {
			return derr
		}
		return b.Remove(ctx, id)
	}
	return nil
}

// Count counts records on the active engine.
func (f *Fallback) Count(ctx context.Context) (int, error) {
	b, err := f.active()
	if err != nil {
		return 0, err
	}
	n, err := b.Count(ctx)
	if err != nil {
		if b.Capability() != Indexed || !degradable(err) {
			return 0, err
		}
		b, derr := f.degrade("count", err)
		if derr != nil {
			return 0, derr
		}
		return b.Count(ctx)
	}
	return n, nil
}

// Capability reports the engine currently in use.
func (f *Fallback) Capability() Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return FlatKV
	}
	return Indexed
}

// Close closes whichever engines were opened.
func (f *Fallback) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var first error
	if !f.degraded && f.preferred != nil {
		first = f.preferred.Close()
	}
	if f.fb != nil {
		if err := f.fb.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
