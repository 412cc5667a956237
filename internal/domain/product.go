package domain

import "github.com/shopspring/decimal"

// Product is a catalog entry as served by the commerce API.
type Product struct {
	ID          ID                  `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Price       decimal.NullDecimal `json:"price"`
	Image       string              `json:"image,omitempty"`
	Stock       int                 `json:"stock"`
}
