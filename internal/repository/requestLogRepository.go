package repository

import (
	"context"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequestLogRepository struct {
	db *storage.Postgres
}

func NewRequestLogRepository(db *storage.Postgres) *RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Inserts a single tracked record
func (r *RequestLogRepository) Create(ctx context.Context, log *models.APIRequestLog) error {
	return r.db.DB.WithContext(ctx).Create(log).Error
}

// Inserts multiple tracked records (used by the batch writer)
func (r *RequestLogRepository) CreateBatch(ctx context.Context, logs []*models.APIRequestLog) error {
	if len(logs) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&logs).Error
}

func (r *RequestLogRepository) FindByID(ctx context.Context, id uint) (*models.APIRequestLog, error) {
	var log models.APIRequestLog
	err := r.db.DB.WithContext(ctx).First(&log, id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &log, err
}

// Retrieves records within a time range
func (r *RequestLogRepository) FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.APIRequestLog, error) {
	var logs []models.APIRequestLog

	err := r.db.DB.WithContext(ctx).
		Where("requested_at BETWEEN ? AND ?", from, to).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Retrieves records for a specific API key
func (r *RequestLogRepository) FindByAPIKey(ctx context.Context, apiKeyID uuid.UUID, from, to time.Time, limit, offset int) ([]models.APIRequestLog, error) {
	var logs []models.APIRequestLog
	err := r.db.DB.WithContext(ctx).
		Where("api_key_id = ? AND requested_at BETWEEN ? AND ?", apiKeyID, from, to).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Retrieves records for a specific user
func (r *RequestLogRepository) FindByUser(ctx context.Context, userID uuid.UUID, from, to time.Time, limit, offset int) ([]models.APIRequestLog, error) {
	var logs []models.APIRequestLog
	err := r.db.DB.WithContext(ctx).
		Where("user_id = ? AND requested_at BETWEEN ? AND ?", userID, from, to).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Retrieves records with a specific status code
func (r *RequestLogRepository) FindByStatusCode(ctx context.Context, statusCode int, from, to time.Time, limit, offset int) ([]models.APIRequestLog, error) {
	var logs []models.APIRequestLog

	err := r.db.DB.WithContext(ctx).
		Where("status_code = ? AND requested_at BETWEEN ? AND ?", statusCode, from, to).
		Order("requested_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&logs).Error

	return logs, err
}

// Counts records in a time range
func (r *RequestLogRepository) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Where("requested_at BETWEEN ? AND ?", from, to).
		Count(&count).Error

	return count, err
}

// Counts records by status code range (e.g., 4xx, 5xx)
func (r *RequestLogRepository) CountByStatusCodeRange(ctx context.Context, minStatusCode, maxStatusCode int, from, to time.Time) (int64, error) {
	var count int64

	err := r.db.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Where("status_code BETWEEN ? AND ? AND requested_at BETWEEN ? AND ?", minStatusCode, maxStatusCode, from, to).
		Count(&count).Error

	return count, err
}

// Calculates average response time
func (r *RequestLogRepository) GetAverageResponseTime(ctx context.Context, from, to time.Time) (float64, error) {
	var avg float64

	err := r.db.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Where("requested_at BETWEEN ? AND ?", from, to).
		Select("AVG(response_ms)").
		Scan(&avg).Error

	return avg, err
}

// Calculates a response time percentile. Postgres only.
func (r *RequestLogRepository) GetPercentile(ctx context.Context, from, to time.Time, percentile float64) (int, error) {
	var result int
	query := `
		SELECT PERCENTILE_CONT(?) WITHIN GROUP (ORDER BY response_ms)
		FROM api_request_logs
		WHERE requested_at BETWEEN ? AND ?
	`

	err := r.db.DB.WithContext(ctx).Raw(query, percentile, from, to).Scan(&result).Error
	return result, err
}

// Returns the most frequently requested paths
func (r *RequestLogRepository) GetTopPaths(ctx context.Context, from, to time.Time, limit int) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Select("path, COUNT(*) as count").
		Where("requested_at BETWEEN ? AND ?", from, to).
		Group("path").
		Order("count DESC").
		Limit(limit).
		Rows()

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var path string
		var count int64

		if err := rows.Scan(&path, &count); err != nil {
			return nil, err
		}

		results = append(results, map[string]interface{}{
			"path":  path,
			"count": count,
		})
	}

	return results, rows.Err()
}

// Returns the request count grouped by hour. Postgres only.
func (r *RequestLogRepository) GetHourlyStats(ctx context.Context, from, to time.Time) ([]map[string]interface{}, error) {
	var results []map[string]interface{}

	rows, err := r.db.DB.WithContext(ctx).
		Model(&models.APIRequestLog{}).
		Select("DATE_TRUNC('hour', requested_at) as hour, COUNT(*) as count, AVG(response_ms) as avg_response_ms").
		Where("requested_at BETWEEN ? AND ?", from, to).
		Group("hour").
		Order("hour ASC").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var hour time.Time
		var count int64
		var avgResponseMs float64
		if err := rows.Scan(&hour, &count, &avgResponseMs); err != nil {
			return nil, err
		}
		results = append(results, map[string]interface{}{
			"hour":            hour,
			"count":           count,
			"avg_response_ms": avgResponseMs,
		})
	}

	return results, rows.Err()
}

// Deletes records older than the specified time
func (r *RequestLogRepository) DeleteOldLogs(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("requested_at < ?", before).
		Delete(&models.APIRequestLog{})

	return result.RowsAffected, result.Error
}
