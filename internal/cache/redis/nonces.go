package redis

import (
	"context"
	"fmt"
	"time"
)

// NonceStore claims nonces with SET NX so every replica sees the same set.
type NonceStore struct {
	client *Client
}

func NewNonceStore(client *Client) *NonceStore {
	return &NonceStore{client: client}
}

func (s *NonceStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.rdb.SetNX(ctx, s.client.key("nonce", key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: claim nonce %s: %w", key, err)
	}
	return ok, nil
}
