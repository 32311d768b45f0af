package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal/auth"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "auth:revoked:"

type RevocationStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

func NewRevocationStore(client goredis.UniversalClient) auth.RevocationStore {
	return &RevocationStore{client: client, now: time.Now}
}

// Revoke stores the token id with a TTL matching the token's remaining life.
// Tokens that already expired need no entry.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, keyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := s.client.Get(ctx, keyPrefix+tokenID).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return true, nil
}

// Healthcheck pings the server.
func Healthcheck(client goredis.UniversalClient) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}
