package middleware

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// KeyFunc picks the bucket for a request. An empty key skips limiting.
type KeyFunc func(c *fiber.Ctx) string

func KeyByIP(c *fiber.Ctx) string {
	return c.IP()
}

// KeyByTelegramUser buckets bot gateway updates by the sending user, so one
// chatty user cannot starve everyone else behind the same gateway IP.
func KeyByTelegramUser(c *fiber.Ctx) string {
	var body struct {
		TelegramUserID int64 `json:"telegram_user_id"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.TelegramUserID == 0 {
		return ""
	}
	return "tg:" + strconv.FormatInt(body.TelegramUserID, 10)
}

func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration, keyFn KeyFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limit <= 0 {
			return c.Next()
		}
		bucket := keyFn(c)
		if bucket == "" {
			return c.Next()
		}
		key := fmt.Sprintf("rl:%s:%s", c.Path(), bucket)

		ctx := c.UserContext()
		var incr *redis.IntCmd
		_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			pipe.ExpireNX(ctx, key, window)
			return nil
		})
		if err != nil {
			return c.Next() // fail open
		}

		if incr.Val() > int64(limit) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}
