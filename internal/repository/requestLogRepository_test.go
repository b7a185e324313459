package repository

import (
	"context"
	"testing"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *storage.Postgres {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.APIRequestLog{}, &models.APIKey{}, &models.User{}))

	return &storage.Postgres{DB: db}
}

func seedLog(t *testing.T, repo *RequestLogRepository, requestedAt time.Time, path string, status, responseMs int, apiKeyID *uuid.UUID) {
	t.Helper()

	require.NoError(t, repo.Create(context.Background(), &models.APIRequestLog{
		RequestedAt:        requestedAt,
		UsernamePersistent: "AnonymousUser",
		Path:               path,
		Method:             "GET",
		ViewMethod:         "get",
		StatusCode:         status,
		ResponseMs:         responseMs,
		APIKeyID:           apiKeyID,
	}))
}

func TestCreateAndFindByID(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))

	log := &models.APIRequestLog{
		RequestedAt:        time.Now().UTC(),
		UsernamePersistent: "AnonymousUser",
		Path:               "/logging",
		Method:             "GET",
		StatusCode:         200,
		QueryParams:        `{"p1":"a"}`,
	}
	require.NoError(t, repo.Create(context.Background(), log))
	require.NotZero(t, log.ID)

	found, err := repo.FindByID(context.Background(), log.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "/logging", found.Path)
	assert.Equal(t, `{"p1":"a"}`, found.QueryParams)
}

func TestFindByIDMissing(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))

	found, err := repo.FindByID(context.Background(), 12345)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestCreateBatch(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))

	logs := []*models.APIRequestLog{
		{RequestedAt: time.Now().UTC(), Path: "/a", Method: "GET", StatusCode: 200},
		{RequestedAt: time.Now().UTC(), Path: "/b", Method: "GET", StatusCode: 201},
	}
	require.NoError(t, repo.CreateBatch(context.Background(), logs))
	require.NoError(t, repo.CreateBatch(context.Background(), nil))

	count, err := repo.CountByTimeRange(context.Background(), time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestFindByTimeRangeOrdersAndPaginates(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		seedLog(t, repo, base.Add(time.Duration(i)*time.Minute), "/p", 200, 10, nil)
	}

	logs, err := repo.FindByTimeRange(context.Background(), base.Add(-time.Minute), base.Add(time.Hour), 2, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	// Newest first
	assert.True(t, logs[0].RequestedAt.After(logs[1].RequestedAt))

	rest, err := repo.FindByTimeRange(context.Background(), base.Add(-time.Minute), base.Add(time.Hour), 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestFindByAPIKey(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	keyID := uuid.New()
	now := time.Now().UTC()

	seedLog(t, repo, now, "/keyed", 200, 5, &keyID)
	seedLog(t, repo, now, "/anon", 200, 5, nil)

	logs, err := repo.FindByAPIKey(context.Background(), keyID, now.Add(-time.Minute), now.Add(time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "/keyed", logs[0].Path)
}

func TestFindByStatusCode(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	now := time.Now().UTC()

	seedLog(t, repo, now, "/ok", 200, 5, nil)
	seedLog(t, repo, now, "/missing", 404, 5, nil)

	logs, err := repo.FindByStatusCode(context.Background(), 404, now.Add(-time.Minute), now.Add(time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "/missing", logs[0].Path)
}

func TestCountByStatusCodeRange(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	now := time.Now().UTC()

	seedLog(t, repo, now, "/ok", 200, 5, nil)
	seedLog(t, repo, now, "/bad", 400, 5, nil)
	seedLog(t, repo, now, "/teapot", 418, 5, nil)
	seedLog(t, repo, now, "/broken", 500, 5, nil)

	clientErrors, err := repo.CountByStatusCodeRange(context.Background(), 400, 499, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), clientErrors)

	serverErrors, err := repo.CountByStatusCodeRange(context.Background(), 500, 599, now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), serverErrors)
}

func TestGetAverageResponseTime(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	now := time.Now().UTC()

	seedLog(t, repo, now, "/a", 200, 10, nil)
	seedLog(t, repo, now, "/b", 200, 30, nil)

	avg, err := repo.GetAverageResponseTime(context.Background(), now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, avg, 0.01)
}

func TestGetTopPaths(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	now := time.Now().UTC()

	seedLog(t, repo, now, "/hot", 200, 5, nil)
	seedLog(t, repo, now, "/hot", 200, 5, nil)
	seedLog(t, repo, now, "/cold", 200, 5, nil)

	top, err := repo.GetTopPaths(context.Background(), now.Add(-time.Minute), now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "/hot", top[0]["path"])
	assert.Equal(t, int64(2), top[0]["count"])
}

func TestDeleteOldLogs(t *testing.T) {
	repo := NewRequestLogRepository(setupTestDB(t))
	now := time.Now().UTC()

	seedLog(t, repo, now.AddDate(0, 0, -40), "/old", 200, 5, nil)
	seedLog(t, repo, now, "/fresh", 200, 5, nil)

	deleted, err := repo.DeleteOldLogs(context.Background(), now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	remaining, err := repo.FindByTimeRange(context.Background(), now.AddDate(0, 0, -60), now.Add(time.Minute), 10, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "/fresh", remaining[0].Path)
}
