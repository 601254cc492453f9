package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RequestStatus is the cached fast-path record for GET /requests/{id}/status.
// Owner ids ride along so a cache hit can still be authorized.
type RequestStatus struct {
	Status   string `json:"status"`
	FarmerID int64  `json:"farmer_id"`
	StallID  int64  `json:"stall_id"`
}

// OrderStatus is the cached fast-path record for GET /orders/{id}/status.
type OrderStatus struct {
	Status     string `json:"status"`
	ConsumerID int64  `json:"consumer_id"`
	StallID    int64  `json:"stall_id"`
}

// StatusCache is a write-through cache over request and order statuses.
// Misses are not errors; callers fall back to the database.
type StatusCache struct {
	rdb *redis.Client
}

func NewStatusCache(rdb *redis.Client) *StatusCache { return &StatusCache{rdb: rdb} }

func (c *StatusCache) SetRequest(ctx context.Context, id int64, rec RequestStatus) error {
	b, _ := json.Marshal(rec)
	return c.rdb.Set(ctx, fmt.Sprintf(KeyRequestStatus, id), b, TTLStatusCache).Err()
}

func (c *StatusCache) GetRequest(ctx context.Context, id int64) (RequestStatus, bool, error) {
	var rec RequestStatus
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyRequestStatus, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

func (c *StatusCache) DeleteRequest(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyRequestStatus, id)).Err()
}

func (c *StatusCache) SetOrder(ctx context.Context, id int64, rec OrderStatus) error {
	b, _ := json.Marshal(rec)
	return c.rdb.Set(ctx, fmt.Sprintf(KeyOrderStatus, id), b, TTLStatusCache).Err()
}

func (c *StatusCache) GetOrder(ctx context.Context, id int64) (OrderStatus, bool, error) {
	var rec OrderStatus
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyOrderStatus, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

func (c *StatusCache) DeleteOrder(ctx context.Context, id int64) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyOrderStatus, id)).Err()
}

// MarkSeen records an event id for dedup. Returns false when already seen.
func (c *StatusCache) MarkSeen(ctx context.Context, service, eventID string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), 1, TTLDedup).Result()
}
