// Package cache provides the local snapshot store for plan documents.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned when no snapshot or pointer exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// Snapshot is the last-known full copy of a plan, scoped by user and
// plan identifier. A snapshot whose PlanID does not match the session's
// resolved plan must be discarded by the caller, never merged.
type Snapshot struct {
	PlanID         string         `json:"plan_id"`
	UserID         string         `json:"user_id"`
	Title          string         `json:"title"`
	FuneralNotes   string         `json:"funeral_notes"`
	FinancialNotes string         `json:"financial_notes"`
	PersonalNotes  string         `json:"personal_notes"`
	Payload        map[string]any `json:"payload"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// RedisStore implements snapshot storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed snapshot store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "plan:",
	}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "plan:",
	}
}

func (s *RedisStore) snapshotKey(userID, planID string) string {
	return s.prefix + "snap:" + userID + ":" + planID
}

func (s *RedisStore) pointerKey(userID string) string {
	return s.prefix + "active:" + userID
}

// SaveSnapshot writes the full snapshot synchronously. No TTL: the
// snapshot is the offline fallback and must survive quiet periods.
func (s *RedisStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	jsonData, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	key := s.snapshotKey(snap.UserID, snap.PlanID)
	if err := s.client.Set(ctx, key, jsonData, 0).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the snapshot for a (user, plan) pair.
func (s *RedisStore) GetSnapshot(ctx context.Context, userID, planID string) (Snapshot, error) {
	key := s.snapshotKey(userID, planID)
	jsonData, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return Snapshot{}, ErrCacheMiss
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("lookup snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(jsonData), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snap.Payload == nil {
		snap.Payload = map[string]any{}
	}
	return snap, nil
}

// SetActivePlan records which plan a user's session last resolved.
// Offline loads use this pointer to find the snapshot key.
func (s *RedisStore) SetActivePlan(ctx context.Context, userID, planID string) error {
	if err := s.client.Set(ctx, s.pointerKey(userID), planID, 0).Err(); err != nil {
		return fmt.Errorf("set active plan pointer: %w", err)
	}
	return nil
}

// GetActivePlan returns the last-resolved plan id for the user.
func (s *RedisStore) GetActivePlan(ctx context.Context, userID string) (string, error) {
	planID, err := s.client.Get(ctx, s.pointerKey(userID)).Result()
	if err == redis.Nil {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("get active plan pointer: %w", err)
	}
	return planID, nil
}

// DeleteSnapshot removes a stale snapshot (routine on plan change).
func (s *RedisStore) DeleteSnapshot(ctx context.Context, userID, planID string) error {
	if err := s.client.Del(ctx, s.snapshotKey(userID, planID)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
