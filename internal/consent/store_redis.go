package consent

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"sieve/internal/filters/models"
)

const (
	// Redis key holding the consent set.
	consentKey = "consent:filter_ids"
)

// RedisStore is a Redis-backed consent store for deployments where consent
// state must survive restarts and be shared across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore constructs a Redis-backed consent store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context) ([]models.FilterID, error) {
	members, err := s.client.SMembers(ctx, consentKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load consent set: %w", err)
	}

	ids := make([]models.FilterID, 0, len(members))
	for _, member := range members {
		n, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("malformed consent member %q", member)
		}
		ids = append(ids, models.FilterID(n))
	}
	slices.Sort(ids)
	return ids, nil
}

// Save replaces the persisted set in one transaction.
func (s *RedisStore) Save(ctx context.Context, ids []models.FilterID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, consentKey)
	if len(ids) > 0 {
		members := make([]any, len(ids))
		for i, id := range ids {
			members[i] = id.String()
		}
		pipe.SAdd(ctx, consentKey, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save consent set: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, consentKey).Err(); err != nil {
		return fmt.Errorf("clear consent set: %w", err)
	}
	return nil
}
