package redis

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisClient holds the command connection shared by the relay publisher,
// the revocation list and the connection cache.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(host, port, password string, db int) *RedisClient {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisClient{client: client}
}

// duplicate opens a second client with the same options. Subscriptions hold
// their connection, so the relay uses its own client for them.
func (r *RedisClient) duplicate() *redis.Client {
	opt := *r.client.Options()
	return redis.NewClient(&opt)
}
