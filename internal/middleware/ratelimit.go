package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/hspatel/fileshare/internal/pkg/errcode"
	"github.com/hspatel/fileshare/internal/pkg/response"
)

const rateLimitMaxKeys = 4096

type rateLimiter struct {
	window time.Duration
	seen   *lru.LRU[string, time.Time]
	now    func() time.Time
}

// RateLimit rejects a second request for the same ip+path inside the
// window. Keys live in a size-bounded expirable LRU so the tracking map
// cannot grow without limit.
func RateLimit(window time.Duration) gin.HandlerFunc {
	limiter := &rateLimiter{
		window: window,
		seen:   lru.NewLRU[string, time.Time](rateLimitMaxKeys, nil, window),
		now:    time.Now,
	}
	return limiter.handle
}

func (l *rateLimiter) handle(c *gin.Context) {
	if l.window <= 0 {
		c.Next()
		return
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	key := strings.Join([]string{c.ClientIP(), path}, "|")

	now := l.now()
	if last, ok := l.seen.Get(key); ok && now.Sub(last) < l.window {
		logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
			zap.String("ip", c.ClientIP()),
			zap.String("path", path),
		)
		response.Error(c, http.StatusTooManyRequests, errcode.ErrTooMany, http.StatusText(http.StatusTooManyRequests))
		c.Abort()
		return
	}
	l.seen.Add(key, now)
	c.Next()
}
