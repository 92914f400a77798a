package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// HashingModelName is stored alongside vectors produced by HashingProvider.
const HashingModelName = "local-hashing-v1"

// HashingProvider is an in-process deterministic embedder. Each word and each of its
// character trigrams is hashed into one of N buckets with a random sign, then the
// vector is L2 normalised. Texts sharing word stems end up close in cosine distance.
type HashingProvider struct {
	dims         int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewHashingProvider(dims int) *HashingProvider {
	return &HashingProvider{
		dims:         dims,
		tokenPattern: regexp.MustCompile(`\p{L}+|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

func (h *HashingProvider) Dimensions() int   { return h.dims }
func (h *HashingProvider) ModelName() string { return HashingModelName }

func (h *HashingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errEmptyText
	}

	acc := make([]float64, h.dims)
	for _, tok := range h.tokenize(text) {
		h.add(acc, "w:"+tok)
		padded := []rune("^" + tok + "$")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(acc, "g:"+string(padded[i:i+3]))
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, h.dims)
	if norm == 0 {
		return vec, nil
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec, nil
}

func (h *HashingProvider) add(acc []float64, feature string) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		acc[idx]--
		return
	}
	acc[idx]++
}

func (h *HashingProvider) tokenize(text string) []string {
	raw := h.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := h.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
		"by", "with", "as", "is", "are", "was", "were", "be", "been", "it", "this", "that", "these",
		"those", "from", "into", "about", "than", "so", "can", "will", "should",
		"o", "os", "as", "um", "uma", "de", "do", "da", "dos", "das", "e", "em", "no", "na", "para", "por", "com",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
