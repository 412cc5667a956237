package apiclient

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type orderItemWire struct {
	Quantity int                 `json:"quantity"`
	Price    decimal.NullDecimal `json:"price"`
}

type orderWire struct {
	ID         domain.ID           `json:"id"`
	Status     string              `json:"status"`
	Items      []orderItemWire     `json:"items"`
	TotalPrice decimal.NullDecimal `json:"total_price"`
}

func (o orderWire) toDomain() domain.Order {
	total := o.TotalPrice.Decimal
	if !o.TotalPrice.Valid {
		total = decimal.Zero
		for _, it := range o.Items {
			if it.Price.Valid {
				total = total.Add(it.Price.Decimal.Mul(decimal.NewFromInt(int64(it.Quantity))))
			}
		}
	}
	return domain.Order{
		ID:         o.ID,
		Status:     o.Status,
		ItemCount:  len(o.Items),
		TotalPrice: total,
	}
}

// CreateOrder turns the server-side cart into an order.
func (c *Client) CreateOrder(ctx context.Context, token string) (domain.Order, error) {
	var out orderWire
	if err := c.do(ctx, http.MethodPost, "/orders/", token, nil, &out); err != nil {
		return domain.Order{}, err
	}
	return out.toDomain(), nil
}

// ListOrders returns the caller's order history.
func (c *Client) ListOrders(ctx context.Context, token string) ([]domain.Order, error) {
	var out []orderWire
	if err := c.do(ctx, http.MethodGet, "/orders/", token, nil, &out); err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(out))
	for _, o := range out {
		orders = append(orders, o.toDomain())
	}
	return orders, nil
}
