package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// NewRedisClient returns nil when no address is configured or the server
// does not answer, which turns rate limiting off.
func NewRedisClient(addr, password string, database int, logger logrus.FieldLogger) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, rate limiting disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// RateLimiter allows limit requests per client IP in each window. The
// counter is created with its expiry in the same transaction that bumps it.
func RateLimiter(client *redis.Client, limit int64, window time.Duration, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		key := "rate_limit:" + c.FullPath() + ":" + c.ClientIP()
		var incr *redis.IntCmd
		_, err := client.TxPipelined(c.Request.Context(), func(pipe redis.Pipeliner) error {
			pipe.SetNX(c.Request.Context(), key, 0, window)
			incr = pipe.Incr(c.Request.Context(), key)
			return nil
		})
		if err != nil {
			logger.WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}
		if incr.Val() > limit {
			abortWithMessage(c, http.StatusTooManyRequests, "Too Many Attempts.")
			return
		}
		c.Next()
	}
}
