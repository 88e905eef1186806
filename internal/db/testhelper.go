package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated circle database in t.TempDir() and returns
// the write/read pool pair the engine runs on. The schema is migrated on the
// write pool before the read pool opens, so the read pool always sees WAL
// files and a complete schema. Tests that don't care about the split can use
// writeDB for everything.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "circles.sqlite")

	writeDB, err := OpenSQLite(path, ModeWrite, 0)
	if err != nil {
		t.Fatalf("open test write pool: %v", err)
	}
	t.Cleanup(func() { _ = writeDB.Close() })

	if err := RunMigrations(writeDB); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	readDB, err = OpenSQLite(path, ModeRead, 4)
	if err != nil {
		t.Fatalf("open test read pool: %v", err)
	}
	t.Cleanup(func() { _ = readDB.Close() })

	return writeDB, readDB
}
