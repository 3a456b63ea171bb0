package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pizza-service/internal/utils"
)

// RedisStore keeps session liveness in Redis so several API instances
// share logouts.  Each token is a string key "<prefix>:<sha256>" holding
// the user id and expiring with the token.  A per-user set indexes the
// hashes for RemoveUser.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store using keys under prefix (default "session").
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) tokenKey(hash string) string { return s.prefix + ":" + hash }

func (s *RedisStore) userKey(userID uint64) string {
	return s.prefix + ":user:" + strconv.FormatUint(userID, 10)
}

func (s *RedisStore) Put(ctx context.Context, token string, userID uint64, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	hash := utils.HashToken(token)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.tokenKey(hash), userID, ttl)
		p.SAdd(ctx, s.userKey(userID), hash)
		// Tokens share one TTL, so the newest token always outlives the
		// index entries written before it.
		p.Expire(ctx, s.userKey(userID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put session: %w", err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.tokenKey(utils.HashToken(token))).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Remove(ctx context.Context, token string) error {
	hash := utils.HashToken(token)
	key := s.tokenKey(hash)
	uid, err := s.rdb.Get(ctx, key).Uint64()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get session: %w", err)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.SRem(ctx, s.userKey(uid), hash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove session: %w", err)
	}
	return nil
}

func (s *RedisStore) RemoveUser(ctx context.Context, userID uint64) error {
	hashes, err := s.rdb.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("redis list user sessions: %w", err)
	}
	keys := make([]string, 0, len(hashes)+1)
	for _, h := range hashes {
		keys = append(keys, s.tokenKey(h))
	}
	keys = append(keys, s.userKey(userID))
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis remove user sessions: %w", err)
	}
	return nil
}
