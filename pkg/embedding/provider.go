// Package embedding provides fixed-dimension text embedding providers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"intellidocs/internal/config"
	"intellidocs/internal/model"
	"intellidocs/pkg/log"
)

// Provider converts text into a vector of exactly Dimensions() floats.
// Implementations are created once per process and are safe for concurrent use.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// ModelName identifies the model and version; query and corpus vectors must share it.
	ModelName() string
}

// NewProvider builds the provider selected by cfg.Provider and, when rdb is not nil,
// wraps it with a Redis-backed vector cache.
func NewProvider(cfg config.EmbeddingConfig, rdb *redis.Client) (Provider, error) {
	var p Provider
	switch cfg.Provider {
	case "local":
		p = NewHashingProvider(cfg.Dimensions)
	case "http", "":
		p = NewHTTPProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if rdb != nil {
		ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
		p = NewCachedProvider(p, NewRedisCache(rdb), ttl)
	}
	log.Infof("[Embedding] provider 初始化完成, model: %s, dims: %d", p.ModelName(), p.Dimensions())
	return p, nil
}

// VerifyDimensions embeds a probe string and checks the vector length against want.
// A mismatch is a configuration error and should stop the process.
func VerifyDimensions(ctx context.Context, p Provider, want int) error {
	if p.Dimensions() != want {
		return fmt.Errorf("%w: provider %s reports %d dims, configured %d",
			model.ErrDimensionMismatch, p.ModelName(), p.Dimensions(), want)
	}
	vec, err := p.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(vec) != want {
		return fmt.Errorf("%w: provider %s returned %d dims, configured %d",
			model.ErrDimensionMismatch, p.ModelName(), len(vec), want)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are treated as maximally distant.
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", model.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

var errEmptyText = errors.New("cannot embed empty text")
