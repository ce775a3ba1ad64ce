// Package storage provides durable, insertion-ordered record storage for
// the pending-sale queue, abstracted over two engines:
//
//   - Indexed: SQLite with WAL mode and an autoincrement sequence. The
//     preferred engine wherever SQLite is usable.
//   - FlatKV: a single JSON file holding the whole record list, rewritten
//     atomically (temp file + fsync + rename) on every mutation.
//
// Which engine to use is decided once per process by Probe, which opens a
// throwaway SQLite database and exercises open/insert/delete. Any probe
// failure degrades to FlatKV; Probe never returns an error.
//
// After that, any failing operation on the Indexed engine permanently
// downgrades the process to FlatKV (see Fallback). Records already written
// to the Indexed engine before a downgrade are not migrated; the downgrade
// is logged with the stranded database path so the condition is visible.
//
// # Guarantees
//
//   - Append is durable before it returns: a process crash immediately
//     afterwards does not lose the record.
//   - ReadAll returns records in insertion order (seq ascending) and never
//     exposes partial records.
//   - Remove and UpdateStatus of an unknown ID are no-ops, not errors.
//   - Count always equals len(ReadAll()).
package storage
