package cache

import (
	"context"
	"testing"
	"time"

	"marketplace-svc/apperrors"
	"marketplace-svc/memstore"
	"marketplace-svc/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingCatalog struct {
	Catalog
	gets int
}

func (c *countingCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	c.gets++
	return c.Catalog.GetProduct(ctx, id)
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func seededCatalog() (*countingCatalog, models.Product) {
	store := memstore.New()
	product := models.Product{ID: uuid.New(), SellerID: uuid.New(), Name: "Lamp", Price: decimal.RequireFromString("12.50")}
	store.PutProduct(product)
	store.PutSeller(product.SellerID)
	return &countingCatalog{Catalog: store}, product
}

func TestCatalogCache_ReadThrough(t *testing.T) {
	client, mr := setupTestRedis(t)
	catalog, product := seededCatalog()
	c := NewCatalogCache(catalog, client, 5*time.Minute, zaptest.NewLogger(t))
	ctx := context.Background()

	first, err := c.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	second, err := c.GetProduct(ctx, product.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.gets)
	assert.True(t, mr.Exists(productKey(product.ID.String())))
	assert.Equal(t, first.SellerID, second.SellerID)
	assert.True(t, product.Price.Equal(second.Price))

	mr.FastForward(6 * time.Minute)
	_, err = c.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.gets)
}

func TestCatalogCache_NotFoundIsNotCached(t *testing.T) {
	client, mr := setupTestRedis(t)
	catalog, _ := seededCatalog()
	c := NewCatalogCache(catalog, client, time.Minute, zaptest.NewLogger(t))
	missing := uuid.New()

	_, err := c.GetProduct(context.Background(), missing)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.False(t, mr.Exists(productKey(missing.String())))
}

func TestCatalogCache_FallsBackWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	catalog, product := seededCatalog()
	c := NewCatalogCache(catalog, client, time.Minute, zaptest.NewLogger(t))
	mr.Close()

	got, err := c.GetProduct(context.Background(), product.ID)

	require.NoError(t, err)
	assert.Equal(t, product.Name, got.Name)
}

func TestCatalogCache_CorruptEntryIsReplaced(t *testing.T) {
	client, mr := setupTestRedis(t)
	catalog, product := seededCatalog()
	c := NewCatalogCache(catalog, client, time.Minute, zaptest.NewLogger(t))
	mr.Set(productKey(product.ID.String()), "{invalid")

	got, err := c.GetProduct(context.Background(), product.ID)

	require.NoError(t, err)
	assert.Equal(t, product.ID, got.ID)
	assert.Equal(t, 1, catalog.gets)
}

func TestCatalogCache_SellerExistsPassesThrough(t *testing.T) {
	client, _ := setupTestRedis(t)
	catalog, product := seededCatalog()
	c := NewCatalogCache(catalog, client, time.Minute, zaptest.NewLogger(t))

	exists, err := c.SellerExists(context.Background(), product.SellerID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = c.SellerExists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIdempotencyStore_Lifecycle(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	state, _, err := s.Lookup(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyUnknown, state)

	ok, err := s.Reserve(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.False(t, ok)

	state, _, err = s.Lookup(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyInFlight, state)

	require.NoError(t, s.Complete(ctx, "buyer-1", "key-1", []byte(`{"orders":[]}`)))
	state, body, err := s.Lookup(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyCompleted, state)
	assert.JSONEq(t, `{"orders":[]}`, string(body))

	mr.FastForward(2 * time.Hour)
	state, _, err = s.Lookup(ctx, "buyer-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, IdempotencyUnknown, state)
}

func TestIdempotencyStore_ScopedPerCaller(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	ok, err := s.Reserve(ctx, "buyer-1", "same")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Reserve(ctx, "buyer-2", "same")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyStore_Release(t *testing.T) {
	client, _ := setupTestRedis(t)
	s := NewIdempotencyStore(client, time.Hour)
	ctx := context.Background()

	_, err := s.Reserve(ctx, "buyer-1", "k")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "buyer-1", "k"))

	ok, err := s.Reserve(ctx, "buyer-1", "k")
	require.NoError(t, err)
	assert.True(t, ok)
}
