// Package dedup guards against LINE webhook redelivery: the platform may
// deliver the same event more than once, and a replayed borrow or return
// must not execute twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store { return &Store{rdb: rdb, ttl: ttl} }

func eventKey(id string) string { return fmt.Sprintf("webhook:event:%s", id) }

// FirstDelivery marks the event id as seen and reports whether this call was
// the first to do so. The mark expires after the TTL; LINE does not redeliver
// beyond that horizon.
func (s *Store) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return s.rdb.SetNX(ctx, eventKey(eventID), "1", s.ttl).Result()
}
