package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/region23/tablebook/pkg/logger"
	"github.com/region23/tablebook/pkg/metrics"
)

// visitor хранит limiter клиента и время последнего обращения
type visitor struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter ограничивает частоту запросов по ключу (IP адрес клиента)
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	logger   *logger.Logger
	now      func() time.Time

	// Cleanup
	cleanupInterval time.Duration
	idleTTL         time.Duration
	done            chan struct{}
	closeOnce       sync.Once
}

// NewRateLimiter создает rate limiter на requestsPerMinute запросов в минуту
// с допустимым всплеском burst
func NewRateLimiter(requestsPerMinute, burst int, log *logger.Logger) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}

	rl := &RateLimiter{
		visitors:        make(map[string]*visitor),
		limit:           rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:           burst,
		logger:          log.Component("ratelimit"),
		now:             time.Now,
		cleanupInterval: 5 * time.Minute,
		idleTTL:         10 * time.Minute,
		done:            make(chan struct{}),
	}

	// Запускаем goroutine для очистки неиспользуемых limiters
	go rl.cleanupRoutine()

	return rl
}

// Allow проверяет, разрешен ли запрос для данного ключа
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).Allow()
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastAccess = rl.now()
	return v.limiter
}

func (rl *RateLimiter) cleanupRoutine() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

// cleanup удаляет limiters, которые давно не использовались
func (rl *RateLimiter) cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTTL)
	cleaned := 0
	for key, v := range rl.visitors {
		if v.lastAccess.Before(cutoff) {
			delete(rl.visitors, key)
			cleaned++
		}
	}

	if cleaned > 0 {
		rl.logger.Debug("Cleaned up rate limiters",
			logger.Int("cleaned_count", cleaned),
			logger.Int("remaining_count", len(rl.visitors)))
	}
	return cleaned
}

// Close останавливает cleanup routine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// RateLimit создает gin middleware, ограничивающий запросы по IP клиента
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		if !limiter.Allow(key) {
			limiter.logger.Warn("Rate limit exceeded",
				logger.String("ip", key),
				logger.String("path", c.Request.URL.Path),
				logger.String("user_agent", c.Request.UserAgent()))
			metrics.RecordError("http", "rate_limited")

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "Too Many Requests",
				},
			})
			return
		}

		c.Next()
	}
}
