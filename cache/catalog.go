package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"marketplace-svc/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Catalog is the product lookup being cached.
type Catalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error)
}

// CatalogCache is a read-through Redis cache in front of a Catalog. Redis
// errors never fail a lookup; the store is consulted instead.
type CatalogCache struct {
	next   Catalog
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogCache(next Catalog, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	return &CatalogCache{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CatalogCache) GetProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	key := productKey(productID.String())

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var product models.Product
		if jsonErr := json.Unmarshal(data, &product); jsonErr == nil {
			return &product, nil
		}
		c.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("Product cache read failed", zap.String("product_id", productID.String()), zap.Error(err))
	}

	product, err := c.next.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Product cache write failed", zap.String("product_id", productID.String()), zap.Error(err))
		}
	}
	return product, nil
}

func (c *CatalogCache) SellerExists(ctx context.Context, sellerID uuid.UUID) (bool, error) {
	return c.next.SellerExists(ctx, sellerID)
}
