// Package seed fills the mock commerce API with a small demo catalog.
package seed

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/importer"
)

type productSeed struct {
	Key         string
	Name        string
	Description string
	Price       string
	Stock       int
}

var products = []productSeed{
	{
		Key:         "demo-shirt",
		Name:        "Demo T-Shirt",
		Description: "Soft cotton tee for demo purposes",
		Price:       "19.99",
		Stock:       25,
	},
	{
		Key:         "demo-mug",
		Name:        "Demo Mug",
		Description: "Ceramic mug with demo logo",
		Price:       "12.99",
		Stock:       40,
	},
	{
		Key:         "demo-tote",
		Name:        "Demo Tote Bag",
		Description: "Canvas tote with reinforced handles",
		Price:       "15.50",
		Stock:       10,
	},
	{
		Key:         "demo-sticker",
		Name:        "Demo Sticker Pack",
		Description: "Five vinyl stickers",
		Price:       "3.00",
		Stock:       200,
	},
}

// Apply upserts the demo catalog. It is idempotent: products are keyed.
func Apply(ctx context.Context, w importer.ProductWriter) error {
	for _, p := range products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("parse price of %s: %w", p.Key, err)
		}
		_, err = w.UpsertProduct(ctx, p.Key, domain.Product{
			Name:        p.Name,
			Description: p.Description,
			Price:       decimal.NewNullDecimal(price),
			Stock:       p.Stock,
		})
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Key, err)
		}
	}
	return nil
}
