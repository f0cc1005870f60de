package service

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/metrics"
	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/typeddata"
)

// defaultEncoderCacheSize 编码器缓存上限
const defaultEncoderCacheSize = 1024

// encoderCache 按类型声明缓存编码器
//
// 达到上限后不再缓存新声明, 已缓存的编码器一直保留.
type encoderCache struct {
	mu       sync.RWMutex
	encoders map[string]*typeddata.Encoder
	limit    int
	logger   *zap.Logger
}

func newEncoderCache(limit int, logger *zap.Logger) *encoderCache {
	if limit <= 0 {
		limit = defaultEncoderCacheSize
	}
	return &encoderCache{
		encoders: make(map[string]*typeddata.Encoder),
		limit:    limit,
		logger:   logger,
	}
}

// get 返回类型声明对应的编码器
func (c *encoderCache) get(types typeddata.Types) (*typeddata.Encoder, error) {
	key, err := cacheKey(types)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	enc, ok := c.encoders[key]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	enc, err = typeddata.NewEncoder(types, typeddata.WithLogger(c.logger))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.encoders[key]; ok {
		return cached, nil
	}
	if len(c.encoders) < c.limit {
		c.encoders[key] = enc
		metrics.EncoderCacheSize.Set(float64(len(c.encoders)))
	}
	return enc, nil
}

// size 返回缓存数量
func (c *encoderCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoders)
}

// cacheKey 以类型声明的 JSON 编码作为缓存键
//
// 键在校验之前计算, 因此不能使用规范类型串: 含分隔符的非法字段名
// 可能与合法声明拼出相同的类型串. JSON 对每个名称加引号转义, 映射键有序.
func cacheKey(types typeddata.Types) (string, error) {
	data, err := json.Marshal(types)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
