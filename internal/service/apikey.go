package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aman-churiwal/api-tracker/internal/models"
	"github.com/aman-churiwal/api-tracker/internal/repository"
	"github.com/aman-churiwal/api-tracker/internal/storage"
	"github.com/google/uuid"
)

const apiKeyCacheTTL = 5 * time.Minute

type APIKeyService struct {
	repository *repository.APIKeyRepository
	redis      *storage.RedisClient
}

func NewAPIKeyService(repo *repository.APIKeyRepository, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{
		repository: repo,
		redis:      redis,
	}
}

func (s *APIKeyService) Create(ctx context.Context, name, createdBy string) (string, error) {
	// Generate random key
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	key := "trk_" + base64.URLEncoding.EncodeToString(keyBytes)

	// Only the hash is stored
	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	apiKey := models.APIKey{
		KeyHash:   keyHash,
		Name:      name,
		CreatedBy: createdBy,
		IsActive:  true,
	}

	if err := s.repository.Create(ctx, &apiKey); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	// Return plain key (only time it's visible)
	return key, nil
}

func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	hash := sha256.Sum256([]byte(key))
	keyHash := hex.EncodeToString(hash[:])

	// Check cache first
	cacheKey := fmt.Sprintf("apikey:cache:%s", keyHash)
	cached, err := s.redis.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		var apiKey models.APIKey
		if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
			return &apiKey, nil
		}
	}

	apiKey, err := s.repository.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, nil
	}

	if data, err := json.Marshal(apiKey); err == nil {
		_ = s.redis.Set(ctx, cacheKey, string(data), apiKeyCacheTTL)
	}

	_ = s.repository.TouchLastUsed(ctx, apiKey.ID, time.Now().UTC())

	return apiKey, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repository.List(ctx)
}

func (s *APIKeyService) Deactivate(ctx context.Context, id uuid.UUID) error {
	apiKey, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if apiKey == nil {
		return fmt.Errorf("API key %s not found", id)
	}

	if err := s.repository.Deactivate(ctx, id); err != nil {
		return err
	}

	// Drop the cache entry so the key stops validating immediately
	cacheKey := fmt.Sprintf("apikey:cache:%s", apiKey.KeyHash)
	return s.redis.Delete(ctx, cacheKey)
}
