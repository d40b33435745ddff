package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "responseMeta"

// WithResponseMeta seeds a metadata map on the request context so handlers
// can attach response metadata such as catalog cache hits. When no handler
// stamps a timing, the total handling time is recorded after the chain runs.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
		meta := metaMap(c)
		if _, ok := meta["processing_time_ms"]; !ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
}

// SetCacheHit records whether the response was served from a cached snapshot.
func SetCacheHit(c *gin.Context, hit bool) {
	metaMap(c)["cache_hit"] = hit
}

// ExtractMeta returns the metadata collected for the current request, or nil
// when WithResponseMeta is not installed on the route.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if value, ok := c.Get(responseMetaKey); ok {
		if meta, ok := value.(map[string]interface{}); ok {
			return meta
		}
	}
	return nil
}

func metaMap(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := map[string]interface{}{}
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
