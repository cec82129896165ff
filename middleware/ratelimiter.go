package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sharath018/community-events-backend/utils"
	"github.com/ulule/limiter/v3"
	ginlimiter "github.com/ulule/limiter/v3/drivers/middleware/gin"
	memory "github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter limits requests per client IP. Counters live in Redis when it
// is configured so every replica shares them, in memory otherwise.
func RateLimiter(perMinute int64) gin.HandlerFunc {
	if perMinute <= 0 {
		perMinute = 100
	}
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  perMinute,
	}

	store := newLimiterStore()
	instance := limiter.New(store, rate)
	return ginlimiter.NewMiddleware(instance)
}

func newLimiterStore() limiter.Store {
	if utils.RedisEnabled() {
		store, err := sredis.NewStoreWithOptions(utils.RedisClient, limiter.StoreOptions{
			Prefix:   "ratelimit",
			MaxRetry: 3,
		})
		if err == nil {
			return store
		}
		utils.Log.Warn("redis rate limiter store unavailable, using memory", zap.Error(err))
	}
	return memory.NewStore()
}
