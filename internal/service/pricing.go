package service

import (
	"context"
	"fmt"

	"shop-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceResolver supplies unit prices for order totals.
// Ids it does not know are omitted from the result.
type PriceResolver interface {
	ResolvePrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
}

// StaticPrices resolves from a fixed table
type StaticPrices map[int64]decimal.Decimal

func (p StaticPrices) ResolvePrices(_ context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(ids))
	for _, id := range ids {
		if price, ok := p[id]; ok {
			prices[id] = price
		}
	}
	return prices, nil
}

// PriceCatalog is the authoritative price source
type PriceCatalog interface {
	GetProductPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
}

// PriceCache holds recently read prices
type PriceCache interface {
	GetPrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error)
	SetPrices(ctx context.Context, prices map[int64]decimal.Decimal) error
}

// CatalogPriceResolver reads current product prices, through a cache when one is configured.
// Cache errors fall through to the catalog.
type CatalogPriceResolver struct {
	catalog PriceCatalog
	cache   PriceCache
	logger  *zap.Logger
}

// NewCatalogPriceResolver creates a resolver; cache may be nil
func NewCatalogPriceResolver(catalog PriceCatalog, cache PriceCache) *CatalogPriceResolver {
	return &CatalogPriceResolver{
		catalog: catalog,
		cache:   cache,
		logger:  util.GetLogger(),
	}
}

func (r *CatalogPriceResolver) ResolvePrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}

	missing := ids
	if r.cache != nil {
		cached, err := r.cache.GetPrices(ctx, ids)
		if err != nil {
			util.PriceCacheLookupsTotal.WithLabelValues("error").Inc()
			r.logger.Warn("Price cache unavailable", zap.Error(err))
		}
		missing = make([]int64, 0, len(ids))
		for _, id := range ids {
			if price, ok := cached[id]; ok {
				prices[id] = price
				util.PriceCacheLookupsTotal.WithLabelValues("hit").Inc()
				continue
			}
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}
	if r.cache != nil {
		util.PriceCacheLookupsTotal.WithLabelValues("miss").Add(float64(len(missing)))
	}

	fresh, err := r.catalog.GetProductPrices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prices: %w", err)
	}
	for id, price := range fresh {
		prices[id] = price
	}

	if r.cache != nil && len(fresh) > 0 {
		if err := r.cache.SetPrices(ctx, fresh); err != nil {
			r.logger.Warn("Failed to cache prices", zap.Error(err))
		}
	}
	return prices, nil
}
