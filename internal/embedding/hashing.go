package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingProvider produces deterministic bag-of-words embeddings with no
// model behind it. Each token is hashed into a fixed bucket and the result
// is L2-normalized, so cosine similarity degrades to weighted token overlap.
// It is the fallback when neither Ollama nor OpenAI is configured: retrieval
// quality drops, but the whole pipeline keeps working offline and results
// stay reproducible.
type HashingProvider struct {
	dims int
}

// NewHashingProvider creates a hashing provider with the given vector size.
func NewHashingProvider(dims int) *HashingProvider {
	if dims <= 0 {
		dims = 256
	}
	return &HashingProvider{dims: dims}
}

// Dimensions returns the embedding vector size.
func (p *HashingProvider) Dimensions() int {
	return p.dims
}

// Embed hashes each token of text into a bucket and normalizes the result.
func (p *HashingProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dims)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % uint32(p.dims))
		// The next hash bit decides the sign, which spreads collisions.
		if sum&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (p *HashingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
