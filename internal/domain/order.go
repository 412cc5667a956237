package domain

import "github.com/shopspring/decimal"

// Order is a read-only projection of a placed order. Status values are supplied by the
// server (created, paid, failed).
type Order struct {
	ID         ID              `json:"id"`
	Status     string          `json:"status"`
	ItemCount  int             `json:"itemCount"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}
