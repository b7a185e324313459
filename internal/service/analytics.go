package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/repository"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/google/uuid"
)

const summaryCacheTTL = time.Minute

type AnalyticsService struct {
	repository *repository.RequestLogRepository
	redis      *storage.RedisClient
}

func NewAnalyticsService(repo *repository.RequestLogRepository, redis *storage.RedisClient) *AnalyticsService {
	return &AnalyticsService{
		repository: repo,
		redis:      redis,
	}
}

// Holds analytics summary data
type AnalyticsSummary struct {
	TotalRequests   int64                    `json:"total_requests"`
	AvgResponseMs   float64                  `json:"avg_response_ms"`
	P50ResponseMs   int                      `json:"p50_response_ms"`
	P95ResponseMs   int                      `json:"p95_response_ms"`
	P99ResponseMs   int                      `json:"p99_response_ms"`
	ErrorRate       float64                  `json:"error_rate"`
	SuccessRate     float64                  `json:"success_rate"`
	ClientErrorRate float64                  `json:"client_error_rate"`
	ServerErrorRate float64                  `json:"server_error_rate"`
	TopPaths        []map[string]interface{} `json:"top_paths"`
}

// Holds time-series analytics data
type TimeSeriesPoint struct {
	Hour          time.Time `json:"hour"`
	Count         int64     `json:"count"`
	AvgResponseMs float64   `json:"avg_response_ms"`
}

// Retrieves the analytics summary for a time range. Summaries are
// cached in Redis for a minute since the admin dashboard polls them.
func (s *AnalyticsService) GetSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	cacheKey := fmt.Sprintf("analytics:summary:%d:%d", from.Unix(), to.Unix())
	if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
		var summary AnalyticsSummary
		if err := json.Unmarshal([]byte(cached), &summary); err == nil {
			return &summary, nil
		}
	}

	summary, err := s.computeSummary(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summary); err == nil {
		_ = s.redis.Set(ctx, cacheKey, string(data), summaryCacheTTL)
	}

	return summary, nil
}

func (s *AnalyticsService) computeSummary(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	summary := &AnalyticsSummary{}

	totalRequests, err := s.repository.CountByTimeRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.TotalRequests = totalRequests

	if totalRequests == 0 {
		return summary, nil
	}

	avgResponseMs, err := s.repository.GetAverageResponseTime(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary.AvgResponseMs = avgResponseMs

	p50, _ := s.repository.GetPercentile(ctx, from, to, 0.50)
	summary.P50ResponseMs = p50

	p95, _ := s.repository.GetPercentile(ctx, from, to, 0.95)
	summary.P95ResponseMs = p95

	p99, _ := s.repository.GetPercentile(ctx, from, to, 0.99)
	summary.P99ResponseMs = p99

	clientErrors, err := s.repository.CountByStatusCodeRange(ctx, 400, 499, from, to)
	if err != nil {
		return nil, err
	}

	serverErrors, err := s.repository.CountByStatusCodeRange(ctx, 500, 599, from, to)
	if err != nil {
		return nil, err
	}

	totalErrors := clientErrors + serverErrors
	summary.ErrorRate = (float64(totalErrors) / float64(totalRequests)) * 100
	summary.SuccessRate = 100 - summary.ErrorRate
	summary.ClientErrorRate = (float64(clientErrors) / float64(totalRequests)) * 100
	summary.ServerErrorRate = (float64(serverErrors) / float64(totalRequests)) * 100

	topPaths, err := s.repository.GetTopPaths(ctx, from, to, 10)
	if err != nil {
		return nil, err
	}
	summary.TopPaths = topPaths

	return summary, nil
}

// Retrieves hourly time-series data
func (s *AnalyticsService) GetTimeSeries(ctx context.Context, from, to time.Time) ([]TimeSeriesPoint, error) {
	hourlyStats, err := s.repository.GetHourlyStats(ctx, from, to)
	if err != nil {
		return nil, err
	}

	timeSeries := make([]TimeSeriesPoint, 0, len(hourlyStats))
	for _, stat := range hourlyStats {
		timeSeries = append(timeSeries, TimeSeriesPoint{
			Hour:          stat["hour"].(time.Time),
			Count:         stat["count"].(int64),
			AvgResponseMs: stat["avg_response_ms"].(float64),
		})
	}

	return timeSeries, nil
}

// Retrieves analytics for a specific API key
func (s *AnalyticsService) GetAPIKeyStats(ctx context.Context, apiKeyID uuid.UUID, from, to time.Time) (*AnalyticsSummary, error) {
	logs, err := s.repository.FindByAPIKey(ctx, apiKeyID, from, to, 10000, 0)
	if err != nil {
		return nil, err
	}

	if len(logs) == 0 {
		return &AnalyticsSummary{}, nil
	}

	summary := &AnalyticsSummary{
		TotalRequests: int64(len(logs)),
	}

	var totalResponseMs int64
	var clientErrors, serverErrors int64

	for _, log := range logs {
		totalResponseMs += int64(log.ResponseMs)

		if log.StatusCode >= 400 && log.StatusCode <= 499 {
			clientErrors++
		}
		if log.StatusCode >= 500 && log.StatusCode <= 599 {
			serverErrors++
		}
	}
	summary.AvgResponseMs = float64(totalResponseMs) / float64(summary.TotalRequests)

	totalErrors := clientErrors + serverErrors
	summary.ErrorRate = (float64(totalErrors) / float64(summary.TotalRequests)) * 100
	summary.SuccessRate = 100 - summary.ErrorRate
	summary.ClientErrorRate = (float64(clientErrors) / float64(summary.TotalRequests)) * 100
	summary.ServerErrorRate = (float64(serverErrors) / float64(summary.TotalRequests)) * 100

	return summary, nil
}

// Retrieves tracked records with pagination and filtering
func (s *AnalyticsService) GetLogs(ctx context.Context, from, to time.Time, statusCode *int, userID *uuid.UUID, limit, offset int) ([]models.APIRequestLog, error) {
	if statusCode != nil {
		return s.repository.FindByStatusCode(ctx, *statusCode, from, to, limit, offset)
	}
	if userID != nil {
		return s.repository.FindByUser(ctx, *userID, from, to, limit, offset)
	}
	return s.repository.FindByTimeRange(ctx, from, to, limit, offset)
}

// Retrieves a single tracked record
func (s *AnalyticsService) GetLog(ctx context.Context, id uint) (*models.APIRequestLog, error) {
	return s.repository.FindByID(ctx, id)
}

// Deletes records older than the retention period
func (s *AnalyticsService) CleanupOldLogs(ctx context.Context, retentionDays int) (int64, error) {
	cutOffDate := time.Now().AddDate(0, 0, -retentionDays)
	return s.repository.DeleteOldLogs(ctx, cutOffDate)
}
