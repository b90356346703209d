package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// ProductSource is what the cached read path needs from the raw client.
type ProductSource interface {
	Products(ctx context.Context, first int) ([]domain.ProductSnapshot, error)
	ProductByHandle(ctx context.Context, handle string) (*domain.ProductSnapshot, error)
}

// CachedProducts fronts the catalog's product reads with redis. Cache
// refills are coalesced with singleflight so a burst of misses for the
// same key produces one upstream call.
type CachedProducts struct {
	source ProductSource
	client *redis.Client
	ttl    time.Duration
	sfg    singleflight.Group
}

func NewCachedProducts(source ProductSource, client *redis.Client) *CachedProducts {
	return &CachedProducts{
		source: source,
		client: client,
		ttl:    5 * time.Minute,
	}
}

func (c *CachedProducts) Products(ctx context.Context, first int) ([]domain.ProductSnapshot, error) {
	key := fmt.Sprintf("catalog:products:%d", first)
	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		var cached []domain.ProductSnapshot
		if ok := c.cacheGet(ctx, key, &cached); ok {
			return cached, nil
		}

		products, err := c.source.Products(ctx, first)
		if err != nil {
			return nil, err
		}
		c.cacheSetAsync(key, products)
		return products, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.ProductSnapshot), nil
}

func (c *CachedProducts) ProductByHandle(ctx context.Context, handle string) (*domain.ProductSnapshot, error) {
	key := "catalog:product:" + handle
	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		var cached domain.ProductSnapshot
		if ok := c.cacheGet(ctx, key, &cached); ok {
			return &cached, nil
		}

		product, err := c.source.ProductByHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		c.cacheSetAsync(key, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.ProductSnapshot), nil
}

func (c *CachedProducts) cacheGet(ctx context.Context, key string, out any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("catalog cache get error: %v", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Printf("catalog cache decode error: %v", err)
		return false
	}
	return true
}

func (c *CachedProducts) cacheSetAsync(key string, value any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		data, err := json.Marshal(value)
		if err != nil {
			log.Printf("catalog cache encode error: %v", err)
			return
		}
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			log.Printf("catalog cache set error: %v", err)
		}
	}()
}
