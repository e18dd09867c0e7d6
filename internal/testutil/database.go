// Package testutil provides shared test fixtures: migrated SQLite stores
// and seeded records.
package testutil

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spendguard/internal/storage"
)

// TestDB is a migrated SQLite store that is closed when the test ends.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a migrated database in the test's temp directory.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.Seed(service.KeySettings, model.DefaultSettings())
//	store := records.New(db.Storage)
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "spendguard.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return &TestDB{Storage: store, t: t}
}

// Seed writes value as JSON under key.
func (db *TestDB) Seed(key string, value any) {
	db.t.Helper()

	data, err := json.Marshal(value)
	if err != nil {
		db.t.Fatalf("failed to encode seed %s: %v", key, err)
	}
	if err := db.Storage.Set(context.Background(), key, data); err != nil {
		db.t.Fatalf("failed to seed %s: %v", key, err)
	}
}

// Raw returns the stored bytes for key, failing the test when it is missing.
func (db *TestDB) Raw(key string) []byte {
	db.t.Helper()

	data, found, err := db.Storage.Get(context.Background(), key)
	if err != nil {
		db.t.Fatalf("failed to read %s: %v", key, err)
	}
	if !found {
		db.t.Fatalf("key %s not found", key)
	}
	return data
}
