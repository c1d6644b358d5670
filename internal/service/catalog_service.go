package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
	"pricing-service/internal/redisclient"
	"pricing-service/internal/store"
	"pricing-service/internal/util"
)

// CatalogService is the catalog collaborator: variant lookups with a Redis
// read-through cache, negotiated customer prices and tier quotes.
type CatalogService struct {
	store    *store.Store
	redis    *redisclient.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store, redis *redisclient.Client, cacheTTL time.Duration) *CatalogService {
	return &CatalogService{
		store:    store,
		redis:    redis,
		cacheTTL: cacheTTL,
		logger:   util.NamedLogger("catalog"),
	}
}

// GetVariant returns a variant with its validated tier table, reading
// through the cache. Cache failures fall back to the database.
func (cs *CatalogService) GetVariant(ctx context.Context, sku string) (models.Variant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.GetVariant")
	defer span.End()

	variant, found, err := cs.redis.GetCachedVariant(ctx, sku)
	if err != nil {
		cs.logger.Warn("Variant cache read failed, falling back to DB",
			zap.String("sku", sku), zap.Error(err))
	}
	if found {
		util.VariantCacheHitsTotal.WithLabelValues("hit").Inc()
		return variant, nil
	}
	util.VariantCacheHitsTotal.WithLabelValues("miss").Inc()

	variant, err = cs.store.GetVariant(ctx, sku)
	if err != nil {
		return models.Variant{}, err
	}

	if err := cs.redis.CacheVariant(ctx, variant, cs.cacheTTL); err != nil {
		cs.logger.Warn("Failed to cache variant",
			zap.String("sku", sku), zap.Error(err))
	}
	return variant, nil
}

// GetNegotiatedPrice returns the customer-specific override for a sku, or
// nil when none is on file.
func (cs *CatalogService) GetNegotiatedPrice(ctx context.Context, sku, customerID string) (*decimal.Decimal, error) {
	return cs.store.GetNegotiatedPrice(ctx, sku, customerID)
}

// QuoteTier resolves a quantity against a variant's tier table, including
// the upsell hint (units to the next tier and projected per-unit savings).
func (cs *CatalogService) QuoteTier(ctx context.Context, sku string, quantity int) (pricing.TierQuote, models.Variant, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.QuoteTier")
	defer span.End()

	variant, err := cs.GetVariant(ctx, sku)
	if err != nil {
		return pricing.TierQuote{}, models.Variant{}, err
	}

	quote := pricing.ResolveTier(variant.Tiers, quantity)
	util.TierQuotesServedTotal.Inc()
	if quote.Next != nil {
		util.UpsellSuggestionsTotal.Inc()
	}
	return quote, variant, nil
}

// WarmVariantCache preloads every catalog variant into Redis. Called at
// startup; load failures are logged and skipped so one bad tier table does
// not block the rest of the catalog.
func (cs *CatalogService) WarmVariantCache(ctx context.Context) error {
	cs.logger.Info("Warming variant cache")

	skus, err := cs.store.GetVariantSKUs(ctx)
	if err != nil {
		return err
	}

	warmed := 0
	for _, sku := range skus {
		variant, err := cs.store.GetVariant(ctx, sku)
		if err != nil {
			cs.logger.Error("Failed to load variant",
				zap.String("sku", sku), zap.Error(err))
			continue
		}
		if err := cs.redis.CacheVariant(ctx, variant, cs.cacheTTL); err != nil {
			cs.logger.Error("Failed to cache variant",
				zap.String("sku", sku), zap.Error(err))
			continue
		}
		warmed++
	}

	cs.logger.Info("Variant cache warmed",
		zap.Int("total", len(skus)), zap.Int("warmed", warmed))
	return nil
}

// InvalidateVariant drops a variant from the cache after a catalog change.
func (cs *CatalogService) InvalidateVariant(ctx context.Context, sku string) error {
	return cs.redis.InvalidateVariant(ctx, sku)
}

// UpdateStock sets the available stock for a variant and drops the cached
// snapshot so the next pricing sees the new count. Stock counts only feed
// the soft warning on line items, they never block an order.
func (cs *CatalogService) UpdateStock(ctx context.Context, sku string, available int) error {
	if available < 0 {
		return apperr.New(apperr.CodeValidation, "available stock must not be negative")
	}
	if _, err := cs.store.GetVariant(ctx, sku); err != nil {
		return err
	}
	if err := cs.store.UpdateAvailableStock(ctx, sku, available); err != nil {
		return err
	}
	if err := cs.redis.InvalidateVariant(ctx, sku); err != nil {
		cs.logger.Warn("Failed to invalidate variant after stock update",
			zap.String("sku", sku), zap.Error(err))
	}
	return nil
}
