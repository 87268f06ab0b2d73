package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/bridge-pay/bridge_pay/internal/apperr"
)

// RateLimit allows maxPerMin requests per caller and scope in a fixed
// one-minute window. Callers are keyed by user id, else by IP. Without
// Redis, or when Redis fails, requests pass.
func RateLimit(cache *redis.Client, scope string, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		caller, _ := c.Locals(LocalUserID).(string)
		if caller == "" {
			caller = c.IP()
		}
		key := "rl:" + scope + ":" + caller
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return apperr.ErrRateLimited
		}
		return c.Next()
	}
}
