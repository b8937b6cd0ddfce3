package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/staff-service/pkg/util"
)

const rateLimitPrefix = "staff:ratelimit:"

// Health and scrape paths are never throttled.
var rateLimitExcluded = []string{"/health", "/metrics"}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	limiter *limiter.Limiter
	logger  *zap.Logger
}

// NewRateLimiter builds a limiter backed by redis, or by process memory when
// client is nil or the redis store cannot be created.
func NewRateLimiter(rate limiter.Rate, client *redis.Client, logger *zap.Logger) *RateLimiter {
	var store limiter.Store
	if client != nil {
		s, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: rateLimitPrefix, MaxRetry: 3})
		if err != nil {
			logger.Warn("redis rate limit store unavailable, using memory", zap.Error(err))
		} else {
			store = s
		}
	}
	if store == nil {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          rateLimitPrefix,
			CleanUpInterval: time.Minute,
		})
	}
	return &RateLimiter{limiter: limiter.New(store, rate), logger: logger}
}

// Handle is the fiber middleware.
func (r *RateLimiter) Handle(c *fiber.Ctx) error {
	for _, prefix := range rateLimitExcluded {
		if strings.HasPrefix(c.Path(), prefix) {
			return c.Next()
		}
	}
	lctx, err := r.limiter.Get(c.UserContext(), c.IP())
	if err != nil {
		// Fail open: a broken store must not take the API down.
		r.logger.Warn("rate limit check failed", zap.Error(err))
		return c.Next()
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))
	if lctx.Reached {
		return apperrors.NewTooManyRequests("too many requests, please try again later")
	}
	return c.Next()
}
