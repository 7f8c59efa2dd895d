package testutil

import (
	"testing"

	"gridvault/internal/core"
	"gridvault/internal/store"
)

// NewTestStore creates a new in-memory SQLite store with schema applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) core.Store {
	t.Helper()
	return NewTestStoreWith(t, nil, nil)
}

// NewTestStoreWith is NewTestStore with injectable clock and ID generator.
func NewTestStoreWith(t *testing.T, clock core.Clock, idgen core.IDGenerator) core.Store {
	t.Helper()

	sqlDB, err := store.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(store.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	st := store.NewSQLiteStoreFromDB(sqlDB, clock, idgen)

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
