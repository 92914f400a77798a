package embedding

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"intellidocs/pkg/log"
)

// VectorCache stores encoded vectors. Get returns ErrCacheMiss when the key is absent.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

var ErrCacheMiss = errors.New("cache miss")

type redisCache struct {
	rdb *redis.Client
}

// NewRedisCache adapts a go-redis client to VectorCache.
func NewRedisCache(rdb *redis.Client) VectorCache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedProvider memoises vectors of an underlying provider. Cache failures are
// logged and bypassed; they never fail an Embed call.
type CachedProvider struct {
	next  Provider
	cache VectorCache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, cache VectorCache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl}
}

func (c *CachedProvider) Dimensions() int   { return c.next.Dimensions() }
func (c *CachedProvider) ModelName() string { return c.next.ModelName() }

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.next.ModelName(), text)
	if b, err := c.cache.Get(ctx, key); err == nil {
		vec := BytesToFloats(b)
		if len(vec) == c.next.Dimensions() {
			return vec, nil
		}
		log.Warnw("[EmbeddingCache] 缓存向量维度不符, 忽略缓存", "key", key, "dims", len(vec))
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Warnw("[EmbeddingCache] 读取缓存失败", "key", key, "error", err)
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, FloatsToBytes(vec), c.ttl); err != nil {
		log.Warnw("[EmbeddingCache] 写入缓存失败", "key", key, "error", err)
	}
	return vec, nil
}

func cacheKey(modelName, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("emb:%s:%s", modelName, hex.EncodeToString(sum[:]))
}

// FloatsToBytes encodes a vector as little-endian float32s.
func FloatsToBytes(v []float32) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, v)
	return buf.Bytes()
}

func BytesToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	_ = binary.Read(bytes.NewReader(b[:len(out)*4]), binary.LittleEndian, &out)
	return out
}
