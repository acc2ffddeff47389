package recent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the list in a redis list, newest at the head, so several
// clients of one user can share it.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, key string) *RedisStore {
	return &RedisStore{rdb: rdb, key: key}
}

func (s *RedisStore) Push(ctx context.Context, e domain.RecentRoom) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode recent room: %w", err)
	}
	raw, err := s.rdb.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("read recent rooms: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, item := range raw {
		var r domain.RecentRoom
		if json.Unmarshal([]byte(item), &r) != nil || r.RoomID == e.RoomID {
			pipe.LRem(ctx, s.key, 0, item)
		}
	}
	pipe.LPush(ctx, s.key, b)
	pipe.LTrim(ctx, s.key, 0, MaxEntries-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push recent room: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) (List, error) {
	raw, err := s.rdb.LRange(ctx, s.key, 0, MaxEntries-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent rooms: %w", err)
	}
	out := make(List, 0, len(raw))
	for _, item := range raw {
		var r domain.RecentRoom
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
