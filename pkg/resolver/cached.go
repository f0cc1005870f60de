package resolver

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/logger"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

const (
	sourceCache    = "cache"
	sourceUpstream = "upstream"

	// DefaultKeyPrefix 默认缓存键前缀
	DefaultKeyPrefix = "typeddata:name:"
	// DefaultTTL 默认缓存时间
	DefaultTTL = 10 * time.Minute
)

var _ typeddata.NameResolver = (*Cached)(nil)

// Cached Redis 缓存解析器
//
// 命中缓存时直接返回; 未命中时查询上游并回写.
// Redis 不可用时降级为直接查询上游.
type Cached struct {
	client    redis.UniversalClient
	upstream  typeddata.NameResolver
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// CachedOption 缓存解析器选项
type CachedOption func(*Cached)

// WithTTL 设置缓存时间
func WithTTL(ttl time.Duration) CachedOption {
	return func(c *Cached) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix 设置缓存键前缀
func WithKeyPrefix(prefix string) CachedOption {
	return func(c *Cached) {
		c.keyPrefix = prefix
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) CachedOption {
	return func(c *Cached) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCached 创建缓存解析器
func NewCached(client redis.UniversalClient, upstream typeddata.NameResolver, opts ...CachedOption) *Cached {
	c := &Cached{
		client:    client,
		upstream:  upstream,
		ttl:       DefaultTTL,
		keyPrefix: DefaultKeyPrefix,
		logger:    logger.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResolveName 实现 typeddata.NameResolver
func (c *Cached) ResolveName(ctx context.Context, name string) (common.Address, error) {
	key := c.key(name)

	timer := metrics.NewTimer()
	raw, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if common.IsHexAddress(raw) {
			metrics.RecordNameResolution(sourceCache, nil, timer.ObserveSeconds())
			return common.HexToAddress(raw), nil
		}
		c.logger.Warn("discarding malformed cached address",
			zap.String("name", name),
			zap.String("value", raw))
	case err == redis.Nil:
	default:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return common.Address{}, ctxErr
		}
		c.logger.Warn("name cache unavailable, falling back to upstream",
			zap.String("name", name),
			zap.Error(err))
	}

	timer = metrics.NewTimer()
	addr, err := c.upstream.ResolveName(ctx, name)
	metrics.RecordNameResolution(sourceUpstream, err, timer.ObserveSeconds())
	if err != nil {
		return common.Address{}, err
	}

	if err := c.client.Set(ctx, key, addr.Hex(), c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache resolved name",
			zap.String("name", name),
			zap.Error(err))
	}
	return addr, nil
}

// Invalidate 删除名称的缓存
func (c *Cached) Invalidate(ctx context.Context, name string) error {
	return c.client.Del(ctx, c.key(name)).Err()
}

func (c *Cached) key(name string) string {
	return c.keyPrefix + normalize(name)
}
