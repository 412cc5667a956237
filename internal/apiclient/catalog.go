package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type productWire struct {
	ID          domain.ID           `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.NullDecimal `json:"price"`
	Image       string              `json:"image"`
	ImageURL    string              `json:"image_url"`
	Quantity    int                 `json:"quantity"`
}

func (p productWire) toDomain() domain.Product {
	image := p.Image
	if image == "" {
		image = p.ImageURL
	}
	return domain.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Image:       image,
		Stock:       p.Quantity,
	}
}

func productsFromWire(in []productWire) []domain.Product {
	out := make([]domain.Product, 0, len(in))
	for _, p := range in {
		out = append(out, p.toDomain())
	}
	return out
}

// ListProducts returns the unfiltered catalog.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []productWire
	if err := c.do(ctx, http.MethodGet, "/products/", "", nil, &out); err != nil {
		return nil, err
	}
	return productsFromWire(out), nil
}

// SearchProducts runs a server-side catalog search.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	var out []productWire
	if err := c.do(ctx, http.MethodGet, "/products/search?q="+url.QueryEscape(query), "", nil, &out); err != nil {
		return nil, err
	}
	return productsFromWire(out), nil
}

// GetProduct fetches a single product.
func (c *Client) GetProduct(ctx context.Context, id domain.ID) (domain.Product, error) {
	var out productWire
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id.String()), "", nil, &out); err != nil {
		return domain.Product{}, err
	}
	return out.toDomain(), nil
}

// DeleteProduct removes a product from the catalog. The token must belong to an admin.
func (c *Client) DeleteProduct(ctx context.Context, token string, id domain.ID) error {
	return c.do(ctx, http.MethodDelete, "/admin/products/"+url.PathEscape(id.String()), token, nil, nil)
}
