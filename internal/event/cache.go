package event

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sharath018/community-events-backend/internal/recurrence"
	"github.com/sharath018/community-events-backend/utils"
)

// PreviewCache stores rendered occurrence previews. Get returns
// utils.ErrCacheMiss when nothing is cached.
type PreviewCache interface {
	Get(ctx context.Context, key string, v interface{}) error
	Set(ctx context.Context, key string, v interface{}) error
	Invalidate(ctx context.Context, templateID uint) error
}

type redisPreviewCache struct {
	ttl time.Duration
}

// NewRedisPreviewCache caches previews in the shared Redis client. Every call
// is a no-op while Redis is disabled.
func NewRedisPreviewCache(ttl time.Duration) PreviewCache {
	return &redisPreviewCache{ttl: ttl}
}

func (c *redisPreviewCache) Get(ctx context.Context, key string, v interface{}) error {
	return utils.GetJSON(ctx, key, v)
}

func (c *redisPreviewCache) Set(ctx context.Context, key string, v interface{}) error {
	if c.ttl <= 0 {
		return nil
	}
	return utils.SetJSON(ctx, key, v, c.ttl)
}

func (c *redisPreviewCache) Invalidate(ctx context.Context, templateID uint) error {
	return utils.DeleteByPrefix(ctx, previewPrefix(templateID))
}

func previewPrefix(templateID uint) string {
	return fmt.Sprintf("preview:%d:", templateID)
}

// previewKey identifies a preview by template, rule and the hour the window
// opens. Any rule edit misses the old entry; readers drop occurrences that
// started since the entry was written.
func previewKey(tmpl recurrence.Template, from time.Time) string {
	r := tmpl.Rule
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%v|%d|%d|%s", r.Pattern, r.Days, r.Start.Unix(), r.Duration, tmpl.Display.Title)
	if r.End != nil {
		fmt.Fprintf(&b, "|%d", r.End.Unix())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return previewPrefix(tmpl.ID) + hex.EncodeToString(sum[:8]) + ":" + from.UTC().Format("2006010215")
}
