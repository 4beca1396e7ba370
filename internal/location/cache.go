package location

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ridelink/internal/domain/geo"

	"github.com/go-redis/redis/v8"
)

const cacheTTL = 24 * time.Hour

// Cache is a read-through Redis cache for provider responses. A nil
// *Cache is valid and disables caching.
type Cache struct {
	client *redis.Client
}

func NewCache(addr string) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   0,
		}),
	}
}

// Get unmarshals a cached value into result. The second return is false
// on a miss; a decode error counts as a miss so a poisoned entry never
// blocks the request path.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	if c == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), result); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, cacheTTL).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func routeKey(origin, destination geo.Point) string {
	return fmt.Sprintf("route:%f:%f:%f:%f",
		origin.Latitude, origin.Longitude, destination.Latitude, destination.Longitude)
}

func geocodeKey(query string) string {
	return "geocoding:" + query
}

func reverseKey(p geo.Point) string {
	return fmt.Sprintf("revgeo:%f:%f", p.Latitude, p.Longitude)
}
