package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const keyPrefix = "docintel:content:"

// NewClient accepts either a redis:// URL or a bare host:port.
func NewClient(ctx context.Context, rawURL string) (*goredis.Client, error) {
	var opts *goredis.Options
	if strings.HasPrefix(rawURL, "redis://") || strings.HasPrefix(rawURL, "rediss://") {
		parsed, err := goredis.ParseURL(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &goredis.Options{Addr: rawURL}
	}

	client := goredis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type ContentCache struct {
	client goredis.Cmdable
}

func NewContentCache(client goredis.Cmdable) *ContentCache {
	return &ContentCache{client: client}
}

func (c *ContentCache) Get(ctx context.Context, key string) (*domain.ContentAnalysis, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get content analysis: %w", err)
	}

	var analysis domain.ContentAnalysis
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return nil, false, fmt.Errorf("decode cached content analysis: %w", err)
	}
	return &analysis, true, nil
}

func (c *ContentCache) Set(ctx context.Context, key string, analysis *domain.ContentAnalysis, ttl time.Duration) error {
	if analysis == nil {
		return nil
	}
	raw, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode content analysis: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set content analysis: %w", err)
	}
	return nil
}

// CachingAnalyzer memoizes successful analyses by content key. Cache
// failures are logged and never fail the analysis; analyzer failures are
// never cached.
type CachingAnalyzer struct {
	next  ports.ContentAnalyzer
	cache ports.ContentCache
	ttl   time.Duration
	key   func(fileBytes []byte, mimeType string) string
}

func NewCachingAnalyzer(next ports.ContentAnalyzer, cache ports.ContentCache, ttl time.Duration, key func([]byte, string) string) *CachingAnalyzer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingAnalyzer{next: next, cache: cache, ttl: ttl, key: key}
}

func (a *CachingAnalyzer) Analyze(ctx context.Context, fileBytes []byte, mimeType string) (*domain.ContentAnalysis, error) {
	key := a.key(fileBytes, domain.NormalizeMimeType(mimeType))

	cached, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "content_cache_get_failed", slog.String("error", err.Error()))
	}
	if ok {
		return cached, nil
	}

	analysis, err := a.next.Analyze(ctx, fileBytes, mimeType)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, key, analysis, a.ttl); err != nil {
		slog.WarnContext(ctx, "content_cache_set_failed", slog.String("error", err.Error()))
	}
	return analysis, nil
}
