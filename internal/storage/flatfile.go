package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
)

// FlatFile is the fallback engine: the whole record list serialized into a
// single JSON file. Every mutation rewrites the file atomically (temp file,
// fsync, rename), so a crash can never leave a partial write visible.
type FlatFile struct {
	mu      sync.Mutex
	path    string
	records []Record
	nextSeq int64
}

// flatDocument is the on-disk layout of the flat store.
type flatDocument struct {
	NextSeq int64    `json:"next_seq"`
	Records []Record `json:"records"`
}

// OpenFlatFile opens (or initializes) the flat store at path.
func OpenFlatFile(path string) (*FlatFile, error) {
	f := &FlatFile{path: path, nextSeq: 1}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open flat store: %w", err)
	}

	var doc flatDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("open flat store: decode %s: %w", path, err)
	}

	f.records = doc.Records
	f.nextSeq = doc.NextSeq
	for _, rec := range f.records {
		if rec.Seq >= f.nextSeq {
			f.nextSeq = rec.Seq + 1
		}
	}
	if f.nextSeq < 1 {
		f.nextSeq = 1
	}
	return f, nil
}

// Append assigns the next Seq and persists the record.
// Appending an ID that is already stored is a no-op (the stored record
// wins and its Seq is filled in), matching the indexed engine.
func (f *FlatFile) Append(ctx context.Context, rec *Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.records {
		if existing.ID == rec.ID {
			rec.Seq = existing.Seq
			return nil
		}
	}

	rec.Seq = f.nextSeq
	f.nextSeq++
	f.records = append(f.records, *rec)

	if err := f.persistLocked(); err != nil {
		// Roll back the in-memory append so memory matches disk.
		f.records = f.records[:len(f.records)-1]
		f.nextSeq--
		rec.Seq = 0
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ReadAll returns all records in insertion order.
func (f *FlatFile) ReadAll(ctx context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

// UpdateStatus sets the status of one record. Unknown IDs are a no-op.
func (f *FlatFile) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		prev := f.records[i].Status
		if prev == status {
			return nil
		}
		f.records[i].Status = status
		if err := f.persistLocked(); err != nil {
			f.records[i].Status = prev
			return fmt.Errorf("update status: %w", err)
		}
		return nil
	}
	return nil
}

// Remove deletes one record. Unknown IDs are a no-op.
func (f *FlatFile) Remove(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.records {
		if f.records[i].ID != id {
			continue
		}
		removed := f.records[i]
		f.records = append(f.records[:i], f.records[i+1:]...)
		if err := f.persistLocked(); err != nil {
			f.records = append(f.records[:i], append([]Record{removed}, f.records[i:]...)...)
			return fmt.Errorf("remove record: %w", err)
		}
		return nil
	}
	return nil
}

// Count returns the number of resident records.
func (f *FlatFile) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

// Capability identifies this engine as FlatKV.
func (f *FlatFile) Capability() Capability {
	return FlatKV
}

// Close is a no-op; every mutation is already flushed.
func (f *FlatFile) Close() error {
	return nil
}

// persistLocked rewrites the store file atomically. Callers hold f.mu.
func (f *FlatFile) persistLocked() error {
	doc := flatDocument{NextSeq: f.nextSeq, Records: f.records}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp := f.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open temp file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
