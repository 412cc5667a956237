package domain

import "github.com/shopspring/decimal"

// CartLine is one product entry of the cart. Display fields are snapshotted from the
// server when the cart is loaded. A line never rests at quantity zero: it is removed instead.
type CartLine struct {
	ID        ID                  `json:"id"`
	ProductID ID                  `json:"productId"`
	Name      string              `json:"name"`
	UnitPrice decimal.NullDecimal `json:"unitPrice"`
	Image     string              `json:"image,omitempty"`
	Quantity  int                 `json:"quantity"`
}

// Subtotal returns quantity × unit price, treating a missing price as zero.
func (l CartLine) Subtotal() decimal.Decimal {
	if !l.UnitPrice.Valid {
		return decimal.Zero
	}
	return l.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
