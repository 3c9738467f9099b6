package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCatalog struct {
	prices map[int64]decimal.Decimal
	calls  [][]int64
	err    error
}

func (c *countingCatalog) GetProductPrices(_ context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	c.calls = append(c.calls, ids)
	if c.err != nil {
		return nil, c.err
	}
	return StaticPrices(c.prices).ResolvePrices(context.Background(), ids)
}

type memPriceCache struct {
	prices map[int64]decimal.Decimal
	getErr error
}

func (c *memPriceCache) GetPrices(_ context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return StaticPrices(c.prices).ResolvePrices(context.Background(), ids)
}

func (c *memPriceCache) SetPrices(_ context.Context, prices map[int64]decimal.Decimal) error {
	for id, p := range prices {
		c.prices[id] = p
	}
	return nil
}

func TestStaticPricesOmitsUnknown(t *testing.T) {
	prices, err := StaticPrices{1: decimal.NewFromInt(2)}.ResolvePrices(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, prices, 1)
}

func TestCatalogPriceResolverUsesCache(t *testing.T) {
	catalog := &countingCatalog{prices: map[int64]decimal.Decimal{
		1: decimal.NewFromInt(10),
		2: decimal.NewFromInt(20),
	}}
	cache := &memPriceCache{prices: map[int64]decimal.Decimal{1: decimal.NewFromInt(10)}}
	r := NewCatalogPriceResolver(catalog, cache)

	prices, err := r.ResolvePrices(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, prices, 2)
	assert.Equal(t, [][]int64{{2, 3}}, catalog.calls)
	assert.Contains(t, cache.prices, int64(2))

	_, err = r.ResolvePrices(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, catalog.calls, 1, "second lookup is served from the cache")
}

func TestCatalogPriceResolverCacheFailureFallsThrough(t *testing.T) {
	catalog := &countingCatalog{prices: map[int64]decimal.Decimal{1: decimal.NewFromInt(10)}}
	cache := &memPriceCache{prices: map[int64]decimal.Decimal{}, getErr: errors.New("redis down")}
	r := NewCatalogPriceResolver(catalog, cache)

	prices, err := r.ResolvePrices(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.True(t, prices[1].Equal(decimal.NewFromInt(10)))
}

func TestCatalogPriceResolverWithoutCache(t *testing.T) {
	catalog := &countingCatalog{err: errors.New("db down")}
	r := NewCatalogPriceResolver(catalog, nil)

	_, err := r.ResolvePrices(context.Background(), []int64{1})
	assert.Error(t, err)

	prices, err := r.ResolvePrices(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
}
