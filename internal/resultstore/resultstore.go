// Package resultstore persists anomaly detection results in Redis with a
// bounded TTL, so recent findings survive restarts without unbounded growth.
package resultstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Store is the result persistence interface. Implementations must be safe
// for concurrent use.
type Store interface {
	Ping(ctx context.Context) error
	// SaveAnomaly persists one result under its anomaly key with the given TTL.
	SaveAnomaly(ctx context.Context, result models.AnomalyResult, ttl time.Duration) error
	// ListAnomalies returns up to limit stored results, optionally filtered by
	// detector source. Order is unspecified.
	ListAnomalies(ctx context.Context, source models.Source, limit int) ([]models.AnomalyResult, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// storedAnomaly is the persisted shape. Only flagged results are stored, so
// the anomaly flag itself is omitted.
type storedAnomaly struct {
	Timestamp    time.Time       `json:"timestamp"`
	Source       models.Source   `json:"source"`
	AnomalyScore float64         `json:"anomaly_score"`
	Confidence   float64         `json:"confidence"`
	Features     map[string]any  `json:"features,omitempty"`
	Explanation  string          `json:"explanation"`
	Severity     models.Severity `json:"severity"`
}

// RedisStore implements Store using go-redis/v9.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr using the given logical database.
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr, DB: db})}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SaveAnomaly(ctx context.Context, result models.AnomalyResult, ttl time.Duration) error {
	payload, err := json.Marshal(storedAnomaly{
		Timestamp:    result.Timestamp,
		Source:       result.Source,
		AnomalyScore: result.AnomalyScore,
		Confidence:   result.Confidence,
		Features:     result.Features,
		Explanation:  result.Explanation,
		Severity:     result.Severity,
	})
	if err != nil {
		return fmt.Errorf("marshal anomaly: %w", err)
	}

	key := AnomalyKey(result.Timestamp, result.Source)
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save anomaly %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) ListAnomalies(ctx context.Context, source models.Source, limit int) ([]models.AnomalyResult, error) {
	match := "anomaly:*"
	if source != "" {
		match = "anomaly:*:" + string(source)
	}

	results := []models.AnomalyResult{}
	iter := s.client.Scan(ctx, 0, match, int64(limit)).Iterator()
	for iter.Next(ctx) {
		if limit > 0 && len(results) >= limit {
			break
		}

		payload, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			// Expired between scan and get.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read anomaly %s: %w", iter.Val(), err)
		}

		var stored storedAnomaly
		if err := json.Unmarshal(payload, &stored); err != nil {
			return nil, fmt.Errorf("decode anomaly %s: %w", iter.Val(), err)
		}
		results = append(results, models.AnomalyResult{
			Timestamp:    stored.Timestamp,
			Source:       stored.Source,
			AnomalyScore: stored.AnomalyScore,
			IsAnomaly:    true,
			Confidence:   stored.Confidence,
			Features:     stored.Features,
			Explanation:  stored.Explanation,
			Severity:     stored.Severity,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan anomalies: %w", err)
	}
	return results, nil
}

func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
