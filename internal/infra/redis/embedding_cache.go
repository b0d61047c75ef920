package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

// EmbeddingCache memoizes query vectors so repeated searches skip the
// embedding provider. Keys include the model name: switching models must not
// serve vectors from the old space.
type EmbeddingCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewEmbeddingCache(client RedisClient, ttl time.Duration) *EmbeddingCache {
	return &EmbeddingCache{
		client: client,
		ttl:    ttl,
	}
}

func queryKey(model, query string) string {
	sum := sha256.Sum256([]byte(query))
	return "qemb:" + model + ":" + hex.EncodeToString(sum[:])
}

// Get returns (nil, nil) on a cache miss.
func (c *EmbeddingCache) Get(ctx context.Context, model, query string) ([]float32, error) {
	data, err := c.client.Get(ctx, queryKey(model, query))
	if err != nil {
		if errors.Is(err, Nil) {
			return nil, nil
		}
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal([]byte(data), &vec); err != nil {
		return nil, err
	}
	return vec, nil
}

func (c *EmbeddingCache) Store(ctx context.Context, model, query string, vector []float32) error {
	data, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, queryKey(model, query), data, c.ttl)
}
