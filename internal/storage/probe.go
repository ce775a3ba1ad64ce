package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Probe determines which engine is usable. It opens a throwaway SQLite
// database under dataDir, verifies that open/insert/delete all succeed, and
// discards it, leaving no persisted footprint.
//
// Probe never fails: any error at any step degrades the answer to FlatKV.
// Call it once per process; the result is meant to be held as configuration,
// not re-detected per operation.
func Probe(dataDir string, logger *zap.Logger) Capability {
	if logger == nil {
		logger = zap.NewNop()
	}

	path := filepath.Join(dataDir, ".capability-probe.db")
	defer func() {
		// WAL leaves sidecar files next to the database.
		os.Remove(path)
		os.Remove(path + "-wal")
		os.Remove(path + "-shm")
	}()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logger.Warn("capability probe: open failed, using flat store", zap.Error(err))
		return FlatKV
	}
	defer db.Close()

	steps := []string{
		"CREATE TABLE probe (id INTEGER PRIMARY KEY, v TEXT)",
		"INSERT INTO probe (v) VALUES ('x')",
		"DELETE FROM probe",
		"DROP TABLE probe",
	}
	for _, stmt := range steps {
		if _, err := db.Exec(stmt); err != nil {
			logger.Warn("capability probe: statement failed, using flat store",
				zap.String("statement", stmt), zap.Error(err))
			return FlatKV
		}
	}

	return Indexed
}
