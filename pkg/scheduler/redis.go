package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const resumeKey = "journey:resume_schedule"

// RedisStore keeps resume entries in a sorted set scored by resume time.
// ZRem acts as the claim: only the scheduler that removes a member resumes
// it, so multiple scheduler instances never double-fire an execution.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore builds a store from a connection config map with the keys
// addr, password and db.
func NewRedisStore(connection map[string]string) (*RedisStore, error) {
	addr := connection["addr"]
	if addr == "" {
		addr = "localhost:6379"
	}

	db := 0
	if raw := connection["db"]; raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", raw, err)
		}

		db = parsed
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: connection["password"],
		DB:       db,
	})

	return &RedisStore{client: client, key: resumeKey}, nil
}

// NewRedisStoreWithClient wraps an existing client, for shared pools and
// tests.
func NewRedisStoreWithClient(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, key: resumeKey}
}

func (s *RedisStore) Schedule(ctx context.Context, executionID string, resumeAt time.Time) error {
	if executionID == "" {
		return errors.New("execution id is required")
	}

	err := s.client.ZAdd(ctx, s.key, redis.Z{
		Score:  float64(resumeAt.UnixMilli()),
		Member: executionID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule resume for %s: %w", executionID, err)
	}

	return nil
}

func (s *RedisStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}

	members, err := s.client.ZRangeByScore(ctx, s.key, opt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read due resumes: %w", err)
	}

	claimed := make([]string, 0, len(members))

	for _, member := range members {
		removed, err := s.client.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return claimed, fmt.Errorf("failed to claim resume %s: %w", member, err)
		}

		// Another scheduler instance claimed it first.
		if removed == 0 {
			continue
		}

		claimed = append(claimed, member)
	}

	return claimed, nil
}

func (s *RedisStore) Remove(ctx context.Context, executionID string) error {
	return s.client.ZRem(ctx, s.key, executionID).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// HealthCheck pings the backing redis instance.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
