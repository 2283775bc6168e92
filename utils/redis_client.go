package utils

import (
	"context"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns a singleton Redis client configured from REDIS_HOST,
// REDIS_PORT, REDIS_PASSWORD and REDIS_DB environment variables.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		host := os.Getenv("REDIS_HOST")
		if host == "" {
			host = "localhost"
		}
		port := envInt("REDIS_PORT", 6379)
		db := envInt("REDIS_DB", 1)
		client := redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           db,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			Sugar.Warnw("redis unreachable, falling back to in-memory stores", "err", err)
			client.Close()
			return
		}
		redisClient = client
	})
	return redisClient
}
