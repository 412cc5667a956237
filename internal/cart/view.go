package cart

import (
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// State is the cart-wide display state.
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StatePopulated
	StateEmpty
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StatePopulated:
		return "populated"
	case StateEmpty:
		return "empty"
	case StateError:
		return "error"
	default:
		return "unauthenticated"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is a snapshot of the cart. Totals are always derived from Lines.
type View struct {
	State      State             `json:"state"`
	Lines      []domain.CartLine `json:"lines"`
	TotalItems int               `json:"totalItems"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	Message    string            `json:"message,omitempty"`
	// Pending lists lines with an update in flight.
	Pending []domain.ID `json:"pending,omitempty"`
}

// RecomputeTotals derives a view from the full line collection. Lines without a price
// count as zero.
func RecomputeTotals(lines []domain.CartLine) View {
	v := View{
		State:      StateEmpty,
		Lines:      append([]domain.CartLine{}, lines...),
		TotalPrice: decimal.Zero,
	}
	for _, l := range lines {
		v.TotalItems += l.Quantity
		v.TotalPrice = v.TotalPrice.Add(l.Subtotal())
	}
	if len(lines) > 0 {
		v.State = StatePopulated
	}
	return v
}
