package api

import (
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// IPRateLimiter implements per-IP rate limiting using token bucket algorithm.
// A bucket untouched for burst*rate is full again and gets evicted.
type IPRateLimiter struct {
	limits    map[string]*tokenBucket
	mu        sync.Mutex
	rate      time.Duration // one token per rate
	burst     int
	idle      time.Duration
	lastPrune time.Time
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

func newIPRateLimiter(rate time.Duration, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limits: make(map[string]*tokenBucket),
		rate:   rate,
		burst:  burst,
		idle:   rate * time.Duration(burst),
	}
}

// allow checks if a request is allowed for the given IP
func (l *IPRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastPrune) >= l.idle {
		l.prune(now)
	}

	bucket, exists := l.limits[ip]
	if !exists {
		l.limits[ip] = &tokenBucket{tokens: float64(l.burst - 1), lastRefill: now}
		return true
	}

	refills := now.Sub(bucket.lastRefill) / l.rate
	if refills > 0 {
		bucket.tokens = min(float64(l.burst), bucket.tokens+float64(refills))
		bucket.lastRefill = bucket.lastRefill.Add(refills * l.rate)
	}

	if bucket.tokens >= 1 {
		bucket.tokens--
		return true
	}
	return false
}

// prune drops buckets that have refilled completely. Caller holds l.mu.
func (l *IPRateLimiter) prune(now time.Time) {
	for ip, bucket := range l.limits {
		if now.Sub(bucket.lastRefill) >= l.idle {
			delete(l.limits, ip)
		}
	}
	l.lastPrune = now
}

// Len returns the number of tracked IPs.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limits)
}

// rateLimitMiddleware creates a Gin middleware for rate limiting
func rateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"message":     "Too many requests. Please try again later.",
				"retry_after": limiter.rate.String(),
			})
			return
		}
		c.Next()
	}
}

// bodyLimitMiddleware caps request bodies. Handlers see a read error once the
// limit is crossed.
func bodyLimitMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":    "request body too large",
				"message":  "Request body exceeds maximum allowed size.",
				"max_size": maxSize,
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return stderrors.As(err, &maxErr)
}
