package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// rateLimiter throttles requests per client IP with a token bucket refilled
// at perMinute/60 tokens per second.
type rateLimiter struct {
	limit     rate.Limit
	burst     int
	retryWait time.Duration
	recorder  MetricsRecorder
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

// newRateLimiter returns a limiter; a non-positive perMinute disables it.
func newRateLimiter(perMinute int, recorder MetricsRecorder, logger *zap.Logger) *rateLimiter {
	if perMinute <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     perMinute,
		retryWait: time.Minute / time.Duration(perMinute),
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
		clients:   make(map[string]*clientLimiter),
	}
}

func (rl *rateLimiter) middleware(c *gin.Context) {
	if rl.clients == nil {
		c.Next()
		return
	}
	if !rl.allow(c.ClientIP()) {
		rl.recorder.RecordRateLimited(c.FullPath())
		rl.logger.Warn("rate limit exceeded",
			zap.String("client_ip", c.ClientIP()),
			zap.String("path", c.FullPath()))
		retryAfter := int(rl.retryWait.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		respondMessage(c, http.StatusTooManyRequests, messageRateLimited)
		return
	}
	c.Next()
}

func (rl *rateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > limiterIdleTTL {
		for client, entry := range rl.clients {
			if now.Sub(entry.lastAccess) > limiterIdleTTL {
				delete(rl.clients, client)
			}
		}
		rl.lastSweep = now
	}

	entry, ok := rl.clients[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = entry
	}
	entry.lastAccess = now
	return entry.limiter.AllowN(now, 1)
}
