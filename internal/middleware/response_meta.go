package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "response_meta_start"
)

// WithResponseMeta starts the per-request map surfaced as the envelope "meta".
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload was served from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	setMeta(c, "cache_hit", hit)
}

// SetReferenceDate echoes the reference date the payload belongs to.
func SetReferenceDate(c *gin.Context, date string) {
	if date != "" {
		setMeta(c, "reference_date", date)
	}
}

// ExtractMeta snapshots the recorded values plus the elapsed time so far.
// It returns nil when the handler recorded nothing.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaMap(c, false)
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if raw, ok := c.Get(requestStartKey); ok {
		if start, ok := raw.(time.Time); ok {
			out["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return out
}

func setMeta(c *gin.Context, key string, value interface{}) {
	if meta := metaMap(c, true); meta != nil {
		meta[key] = value
	}
}

func metaMap(c *gin.Context, create bool) map[string]interface{} {
	if c == nil {
		return nil
	}
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	if !create {
		return nil
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
