package middleware

// This in-memory cache is used for simplicity purpose. It can be replaced with Redis.
// golang-lru automatically evicts the least recently accessed items, ensuring efficient memory usage.

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
)

// ResponseCache memoizes successful GET responses in an LRU cache.
type ResponseCache struct {
	cache *lru.Cache
}

type cachedResponse struct {
	status      int
	contentType string
	body        []byte
}

// NewResponseCache sets up an in-memory LRU cache of the given size.
func NewResponseCache(size int) (*ResponseCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{cache: cache}, nil
}

// Middleware serves cached bodies for repeated GETs of the same URI and
// captures fresh 200 responses on the way out. Attach it only to routes
// whose responses are safe to replay.
func (rc *ResponseCache) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := generateCacheKey(c)
		if v, ok := rc.cache.Get(key); ok {
			resp := v.(cachedResponse)
			c.Data(resp.status, resp.contentType, resp.body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		// Cache only successes to avoid replaying errors.
		if w.Status() == http.StatusOK {
			rc.cache.Add(key, cachedResponse{
				status:      w.Status(),
				contentType: w.Header().Get("Content-Type"),
				body:        w.body.Bytes(),
			})
		}
	}
}

// generateCacheKey derives the cache key from the full request URI,
// query string included.
func generateCacheKey(c *gin.Context) string {
	return c.Request.Method + ":" + c.Request.URL.RequestURI()
}

// captureWriter tees the response body so it can be cached after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
