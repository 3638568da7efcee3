package repository

import (
	"testing"

	"movierec/database"
)

func setupTestDB(t *testing.T) (*database.DB, func()) {
	// Create an in-memory test database
	testDB, err := database.NewDB(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Initialize schema
	if err := testDB.Migrate(t.Context()); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	// Return cleanup function
	cleanup := func() {
		if err := testDB.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return testDB, cleanup
}
