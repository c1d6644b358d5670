package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"pricing-service/internal/apperr"
	"pricing-service/internal/models"
	"pricing-service/internal/pricing"
)

type variantRow struct {
	SKU            string          `db:"sku"`
	ProductName    string          `db:"product_name"`
	Description    string          `db:"description"`
	ListUnitPrice  decimal.Decimal `db:"list_unit_price"`
	AvailableStock int             `db:"available_stock"`
}

// GetVariant loads a catalog variant with its bulk pricing table. Tier
// tables are validated here, at load time; a malformed table surfaces as a
// tier integrity error and never reaches order pricing.
func (s *Store) GetVariant(ctx context.Context, sku string) (models.Variant, error) {
	var row variantRow
	err := s.db.GetContext(ctx, &row, `
		SELECT v.sku, p.name AS product_name, v.description,
			v.list_unit_price, v.available_stock
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.sku = $1`, sku)
	if err == sql.ErrNoRows {
		return models.Variant{}, apperr.Newf(apperr.CodeNotFound, "variant not found: %s", sku)
	}
	if err != nil {
		return models.Variant{}, err
	}

	tiers, err := s.getTiers(ctx, sku)
	if err != nil {
		return models.Variant{}, err
	}

	return models.Variant{
		SKU:            row.SKU,
		ProductName:    row.ProductName,
		Description:    row.Description,
		ListUnitPrice:  row.ListUnitPrice,
		Tiers:          tiers,
		AvailableStock: row.AvailableStock,
	}, nil
}

func (s *Store) getTiers(ctx context.Context, sku string) ([]models.PriceTier, error) {
	var tiers []models.PriceTier
	err := s.db.SelectContext(ctx, &tiers, `
		SELECT min_quantity, unit_price, discount_percent
		FROM price_tiers
		WHERE sku = $1
		ORDER BY min_quantity`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiers for %s: %w", sku, err)
	}
	if err := pricing.ValidateTierTable(tiers); err != nil {
		return nil, fmt.Errorf("tier table for %s: %w", sku, err)
	}
	return tiers, nil
}

// GetVariantSKUs lists every catalog sku, used to warm the variant cache.
func (s *Store) GetVariantSKUs(ctx context.Context) ([]string, error) {
	var skus []string
	err := s.db.SelectContext(ctx, &skus, "SELECT sku FROM variants ORDER BY sku")
	return skus, err
}

// GetNegotiatedPrice returns the customer-specific unit price for a sku, or
// nil when no negotiated price exists.
func (s *Store) GetNegotiatedPrice(ctx context.Context, sku, customerID string) (*decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.GetContext(ctx, &price, `
		SELECT unit_price FROM negotiated_prices
		WHERE sku = $1 AND customer_id = $2`, sku, customerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// UpdateAvailableStock adjusts the stock count for a variant.
func (s *Store) UpdateAvailableStock(ctx context.Context, sku string, available int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE variants SET available_stock = $1 WHERE sku = $2", available, sku)
	return err
}
