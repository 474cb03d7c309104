package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/move-leads-platform/internal/config"
	httpmiddleware "github.com/wolfman30/move-leads-platform/internal/http/middleware"
	"github.com/wolfman30/move-leads-platform/pkg/logging"
)

const submitBurst = 3

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSubmitLimiter picks the shared Redis limiter when Redis is reachable and
// falls back to a per-process limiter otherwise. A non-positive rate disables
// limiting. The local limiter's eviction loop stops with ctx.
func BuildSubmitLimiter(ctx context.Context, cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) httpmiddleware.Limiter {
	if cfg == nil || cfg.SubmitRatePerMinute <= 0 {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		logger.Info("submit rate limit backed by redis", "per_minute", cfg.SubmitRatePerMinute)
		return httpmiddleware.NewRedisLimiter(redisClient, cfg.SubmitRatePerMinute, time.Minute)
	}
	limiter := httpmiddleware.NewLocalLimiter(cfg.SubmitRatePerMinute, submitBurst)
	go limiter.Run(ctx)
	logger.Info("submit rate limit is per process", "per_minute", cfg.SubmitRatePerMinute)
	return limiter
}
