package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierec/database"
	"movierec/models"
	"movierec/repository"
)

func setupTestJobManager(t *testing.T, interval time.Duration) (*JobManager, *repository.WatchedRepository, *fakeSearcher, func()) {
	// Create an in-memory test database
	testDB, err := database.NewDB(database.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	// Initialize schema
	if err := testDB.Migrate(t.Context()); err != nil {
		t.Fatalf("Failed to initialize test schema: %v", err)
	}

	watchedRepo := repository.NewWatchedRepository(testDB)
	searcher := newFakeSearcher()
	job := NewPosterBackfillJob(watchedRepo, searcher, 10)
	jm := NewJobManager(context.Background(), job, interval)

	// Return cleanup function
	cleanup := func() {
		if jm.IsRunning() {
			jm.Stop()
		}
		if err := testDB.Close(); err != nil {
			t.Logf("Failed to close test database: %v", err)
		}
	}

	return jm, watchedRepo, searcher, cleanup
}

func TestJobManager_NewJobManager(t *testing.T) {
	jm, _, _, cleanup := setupTestJobManager(t, 0)
	defer cleanup()

	assert.NotNil(t, jm)
	assert.NotNil(t, jm.backfillJob)
	assert.Equal(t, DefaultBackfillInterval, jm.interval)
	assert.False(t, jm.IsRunning())
}

func TestJobManager_StartStop(t *testing.T) {
	jm, _, _, cleanup := setupTestJobManager(t, time.Hour)
	defer cleanup()

	jm.Start()
	assert.True(t, jm.IsRunning())

	// Second start is ignored
	jm.Start()
	assert.True(t, jm.IsRunning())

	jm.Stop()
	assert.False(t, jm.IsRunning())

	// Second stop is ignored
	jm.Stop()
	assert.False(t, jm.IsRunning())
}

func TestJobManager_StopWithoutStart(t *testing.T) {
	jm, _, _, cleanup := setupTestJobManager(t, time.Hour)
	defer cleanup()

	jm.Stop()
	assert.False(t, jm.IsRunning())
}

func TestJobManager_BackfillsOnStartup(t *testing.T) {
	jm, watchedRepo, searcher, cleanup := setupTestJobManager(t, time.Hour)
	defer cleanup()
	ctx := t.Context()

	searcher.set("Inception", models.CatalogMovie{ID: 27205, Title: "Inception", PosterPath: "/incep.jpg"})
	require.NoError(t, watchedRepo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Inception"}))

	jm.Start()

	assert.Eventually(t, func() bool {
		entries, err := watchedRepo.ListByUser(ctx, "u1")
		return err == nil && len(entries) == 1 && entries[0].PosterPath != nil
	}, 2*time.Second, 10*time.Millisecond)

	jm.Stop()

	entries, err := watchedRepo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "/incep.jpg", *entries[0].PosterPath)
	assert.Equal(t, 27205, entries[0].TMDBID)
}

func TestJobManager_TriggerBackfill(t *testing.T) {
	jm, watchedRepo, searcher, cleanup := setupTestJobManager(t, time.Hour)
	defer cleanup()
	ctx := t.Context()

	// Not running: trigger is a no-op
	jm.TriggerBackfill()
	jm.wg.Wait()

	jm.Start()

	searcher.set("Heat", models.CatalogMovie{ID: 949, Title: "Heat", PosterPath: "/heat.jpg"})
	require.NoError(t, watchedRepo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))

	jm.TriggerBackfill()

	assert.Eventually(t, func() bool {
		entries, err := watchedRepo.ListByUser(ctx, "u1")
		return err == nil && len(entries) == 1 && entries[0].PosterPath != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJobManager_ParentContextStopsJobs(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	job := NewPosterBackfillJob(&fakeStore{}, newFakeSearcher(), 10)
	jm := NewJobManager(parent, job, time.Hour)

	jm.Start()
	cancel()

	done := make(chan struct{})
	go func() {
		jm.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job manager did not stop after parent cancellation")
	}
}

func TestJobManager_NoJobConfigured(t *testing.T) {
	jm := NewJobManager(context.Background(), nil, time.Hour)

	jm.Start()
	jm.TriggerBackfill()
	jm.Stop()
	assert.False(t, jm.IsRunning())
}
