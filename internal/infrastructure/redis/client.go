package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

func revocationKey(token string) string {
	return fmt.Sprintf("blacklist:%s", token)
}

func presenceKey(userID string) string {
	return fmt.Sprintf("presence:%s:conns", userID)
}

// IsTokenRevoked reports whether token was placed on the revocation list.
func (r *RedisClient) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeToken puts token on the revocation list until ttl elapses.
func (r *RedisClient) RevokeToken(ctx context.Context, token string, ttl time.Duration) error {
	return r.client.Set(ctx, revocationKey(token), "1", ttl).Err()
}

// AddConnection records a live connection of userID.
func (r *RedisClient) AddConnection(ctx context.Context, userID, connID string) error {
	info := map[string]interface{}{
		"conn_id":   connID,
		"joined_at": time.Now(),
	}

	infoJSON, err := json.Marshal(info)
	if err != nil {
		return err
	}

	return r.client.HSet(ctx, presenceKey(userID), connID, infoJSON).Err()
}

func (r *RedisClient) RemoveConnection(ctx context.Context, userID, connID string) error {
	return r.client.HDel(ctx, presenceKey(userID), connID).Err()
}

// CountConnections returns how many live connections userID has across all
// processes.
func (r *RedisClient) CountConnections(ctx context.Context, userID string) (int, error) {
	n, err := r.client.HLen(ctx, presenceKey(userID)).Result()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
