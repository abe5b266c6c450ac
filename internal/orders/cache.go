package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ordercore/fulfillment/internal/redisx"
)

// RedisStatusCache is a read-side shortcut for order status. Misses and
// redis errors both fall through to the database.
type RedisStatusCache struct {
	Client *redis.Client
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, orderID uuid.UUID, s Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = c.Client.Set(ctx, key, string(s), redisx.TTLStatusCache).Err()
}

func (c *RedisStatusCache) GetStatus(ctx context.Context, orderID uuid.UUID) (Status, bool) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	v, err := c.Client.Get(ctx, key).Result()
	if err != nil || v == "" {
		return "", false
	}
	return Status(v), true
}
