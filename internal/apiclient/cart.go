package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type cartItemWire struct {
	ID        domain.ID           `json:"id"`
	ProductID domain.ID           `json:"product_id"`
	Quantity  int                 `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	Product   *productWire        `json:"product"`
}

func (it cartItemWire) toDomain() domain.CartLine {
	line := domain.CartLine{
		ID:        it.ID,
		ProductID: it.ProductID,
		UnitPrice: it.Price,
		Quantity:  it.Quantity,
	}
	if p := it.Product; p != nil {
		if line.ProductID == "" {
			line.ProductID = p.ID
		}
		line.Name = p.Name
		line.Image = p.toDomain().Image
		if p.Price.Valid {
			line.UnitPrice = p.Price
		}
	}
	return line
}

// cartPayload accepts both cart shapes the API has served: {"items": [...]} and a bare
// array of items.
type cartPayload []cartItemWire

func (c *cartPayload) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []cartItemWire
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*c = items
		return nil
	}
	var env struct {
		Items []cartItemWire `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return err
	}
	*c = env.Items
	return nil
}

type addItemRequest struct {
	ProductID domain.ID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// GetCart returns the lines of the caller's cart.
func (c *Client) GetCart(ctx context.Context, token string) ([]domain.CartLine, error) {
	var payload cartPayload
	if err := c.do(ctx, http.MethodGet, "/cart/", token, nil, &payload); err != nil {
		return nil, err
	}
	lines := make([]domain.CartLine, 0, len(payload))
	for _, it := range payload {
		lines = append(lines, it.toDomain())
	}
	return lines, nil
}

// AddCartItem adds quantity units of a product to the cart.
func (c *Client) AddCartItem(ctx context.Context, token string, productID domain.ID, quantity int) error {
	return c.do(ctx, http.MethodPost, "/cart/items", token, addItemRequest{ProductID: productID, Quantity: quantity}, nil)
}

// UpdateCartItem sets the absolute quantity of a line. The server removes the line when
// quantity <= 0.
func (c *Client) UpdateCartItem(ctx context.Context, token string, lineID domain.ID, quantity int) error {
	return c.do(ctx, http.MethodPut, "/cart/items/"+url.PathEscape(lineID.String()), token, updateItemRequest{Quantity: quantity}, nil)
}
