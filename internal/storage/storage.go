package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Capability identifies which storage engine the process is using.
type Capability string

const (
	// Indexed is the SQLite engine (transactional, indexed).
	Indexed Capability = "indexed"
	// FlatKV is the single-file JSON engine.
	FlatKV Capability = "flatkv"
)

// Record is the envelope the queue persists. Body is opaque to this package.
type Record struct {
	// ID is the caller-assigned identifier (the sale's offline ID).
	ID string `json:"id"`
	// Seq is the backend-local insertion sequence, assigned by Append.
	Seq int64 `json:"seq"`
	// CreatedAt is the caller-supplied creation timestamp.
	CreatedAt time.Time `json:"created_at"`
	// Status is the caller-owned lifecycle marker.
	Status string `json:"status"`
	// Body is the serialized record content.
	Body json.RawMessage `json:"body"`
}

// Backend is the record API both engines implement.
//
// All mutations are durable before they return. ReadAll yields records in
// insertion order. Remove and UpdateStatus treat unknown IDs as no-ops.
type Backend interface {
	Append(ctx context.Context, rec *Record) error
	ReadAll(ctx context.Context) ([]Record, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Capability() Capability
	Close() error
}

// File names under the data directory.
const (
	sqliteFile = "pending-sales.db"
	flatFile   = "pending-sales.json"
)

// Open probes the data directory once and returns the Backend to use for
// the rest of the process lifetime.
//
// When the probe selects Indexed, the returned Backend is a Fallback
// wrapper: the first failing SQLite operation downgrades permanently to the
// flat-file engine. When the probe selects FlatKV (or the SQLite store
// cannot be opened at all), the flat-file engine is used directly.
func Open(dataDir string, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	flatPath := filepath.Join(dataDir, flatFile)

	if Probe(dataDir, logger) == Indexed {
		db, err := OpenSQLite(filepath.Join(dataDir, sqliteFile))
		if err == nil {
			return NewFallback(db, flatPath, logger), nil
		}
		// Probe passed but the real store did not open. Degrade the same
		// way a mid-session failure would.
		logger.Warn("indexed store unusable despite probe, using flat store",
			zap.String("path", filepath.Join(dataDir, sqliteFile)),
			zap.Error(err))
	}

	return OpenFlatFile(flatPath)
}
