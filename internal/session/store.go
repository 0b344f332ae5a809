// Package session keeps per-browser flags in Redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func skipKey(sessionID string) string {
	return fmt.Sprintf("hyperpay:skip_status_check:%s", sessionID)
}

func (s *Store) SetSkipStatusCheck(ctx context.Context, sessionID string) error {
	return s.client.Set(ctx, skipKey(sessionID), "1", s.ttl).Err()
}

// ConsumeSkipStatusCheck reads and clears the flag atomically. GETDEL keeps
// the read-then-clear single-flight even when a user refreshes the pending
// page from two tabs.
func (s *Store) ConsumeSkipStatusCheck(ctx context.Context, sessionID string) (bool, error) {
	err := s.client.GetDel(ctx, skipKey(sessionID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
