package repository

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierec/common"
	"movierec/models"
)

func strPtr(s string) *string { return &s }

func TestWatchedRepository_InsertAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Inception", PosterPath: strPtr("/incep.jpg"), TMDBID: 27205}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u2", Movie: "Alien"}))

	entries, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "Inception", entries[0].Movie)
	require.NotNil(t, entries[0].PosterPath)
	assert.Equal(t, "/incep.jpg", *entries[0].PosterPath)
	assert.Equal(t, 27205, entries[0].TMDBID)

	assert.Equal(t, "Heat", entries[1].Movie)
	assert.Nil(t, entries[1].PosterPath)
	assert.Zero(t, entries[1].TMDBID)
}

func TestWatchedRepository_ListByUser_Empty(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)

	entries, err := repo.ListByUser(t.Context(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestWatchedRepository_ListTitles(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	for _, title := range []string{"B", "A", "C"} {
		require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: title}))
	}

	titles, err := repo.ListTitles(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, titles)
}

func TestWatchedRepository_DeleteByTitle(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u2", Movie: "Heat"}))

	removed, err := repo.DeleteByTitle(ctx, "u1", "Heat")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	// Other users' entries are untouched
	titles, err := repo.ListTitles(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Heat"}, titles)

	removed, err = repo.DeleteByTitle(ctx, "u1", "Heat")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestWatchedRepository_DeleteByTitle_ExactMatch(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))

	removed, err := repo.DeleteByTitle(ctx, "u1", "heat")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestWatchedRepository_DatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewWatchedRepository(db)
	ctx := t.Context()
	boom := errors.New("disk I/O error")

	mock.ExpectExec("INSERT INTO watched").WillReturnError(boom)
	assert.ErrorIs(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}), boom)

	mock.ExpectQuery("SELECT id, user_id").WithArgs("u1").WillReturnError(boom)
	_, err = repo.ListByUser(ctx, "u1")
	assert.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT movie FROM watched").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"movie"}).AddRow("Heat").RowError(0, boom))
	_, err = repo.ListTitles(ctx, "u1")
	assert.ErrorIs(t, err, boom)

	mock.ExpectExec("DELETE FROM watched").WithArgs("u1", "Heat").
		WillReturnResult(sqlmock.NewErrorResult(boom))
	_, err = repo.DeleteByTitle(ctx, "u1", "Heat")
	assert.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWatchedRepository_MissingPosters(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Inception"}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat", PosterPath: strPtr("/heat.jpg")}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u2", Movie: "Alien"}))

	missing, err := repo.ListMissingPosters(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, "Inception", missing[0].Movie)
	assert.Equal(t, "u2", missing[1].UserID)

	limited, err := repo.ListMissingPosters(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	after, err := repo.ListMissingPosters(ctx, missing[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Alien", after[0].Movie)

	require.NoError(t, repo.SetCatalogInfo(ctx, missing[0].ID, "/incep.jpg", 27205))

	entries, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, entries[0].PosterPath)
	assert.Equal(t, "/incep.jpg", *entries[0].PosterPath)
	assert.Equal(t, 27205, entries[0].TMDBID)

	missing, err = repo.ListMissingPosters(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 1)
}

func TestWatchedRepository_MissingPosters_SkipsMatchedWithoutPoster(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Obscure", TMDBID: 5}))
	require.NoError(t, repo.Insert(ctx, &models.WatchedEntry{UserID: "u1", Movie: "Heat"}))

	missing, err := repo.ListMissingPosters(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "Heat", missing[0].Movie)

	// A catalog id without a poster also resolves the entry
	require.NoError(t, repo.SetCatalogInfo(ctx, missing[0].ID, "", 949))

	missing, err = repo.ListMissingPosters(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)

	entries, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, entries[1].PosterPath)
	assert.Equal(t, 949, entries[1].TMDBID)
}

func TestWatchedRepository_SetCatalogInfo_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	repo := NewWatchedRepository(db)

	err := repo.SetCatalogInfo(t.Context(), 999, "/x.jpg", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
