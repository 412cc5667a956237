package fakeapi

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

type product struct {
	domain.Product
	Key    string
	Active bool
}

type cartItem struct {
	ID        domain.ID
	ProductID domain.ID
	Quantity  int
	Price     decimal.Decimal
}

type orderItem struct {
	ProductID domain.ID
	Quantity  int
	Price     decimal.Decimal
}

type order struct {
	ID        int
	Status    string
	Items     []orderItem
	CreatedAt time.Time
}

func (o order) total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Store holds the catalog, carts and orders of the mock API. Carts and orders are keyed
// by account id.
type Store struct {
	mu          sync.Mutex
	products    []*product
	byKey       map[string]*product
	carts       map[int][]cartItem
	orders      map[int][]order
	nextProduct int
	nextOrder   int
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		byKey:  make(map[string]*product),
		carts:  make(map[int][]cartItem),
		orders: make(map[int][]order),
		now:    time.Now,
	}
}

// UpsertProduct creates or replaces the product stored under key. The id of an existing
// product is kept.
func (s *Store) UpsertProduct(_ context.Context, key string, p domain.Product) (domain.Product, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		key = strings.ToLower(strings.TrimSpace(p.Name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byKey[key]; ok {
		p.ID = existing.ID
		existing.Product = p
		existing.Active = true
		return p, nil
	}
	s.nextProduct++
	p.ID = domain.ID(strconv.Itoa(s.nextProduct))
	rec := &product{Product: p, Key: key, Active: true}
	s.products = append(s.products, rec)
	s.byKey[key] = rec
	return p, nil
}

// SetActive hides or re-lists a product.
func (s *Store) SetActive(id domain.ID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.productLocked(id)
	if p == nil {
		return domain.ErrNotFound
	}
	p.Active = active
	return nil
}

// DeleteProduct removes a product from the catalog and from every cart. Products that
// appear in an order are kept.
func (s *Store) DeleteProduct(id domain.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.products, func(p *product) bool { return p.ID == id })
	if i < 0 {
		return domain.ErrNotFound
	}
	for _, orders := range s.orders {
		for _, o := range orders {
			if slices.ContainsFunc(o.Items, func(it orderItem) bool { return it.ProductID == id }) {
				return ErrProductInOrders
			}
		}
	}
	delete(s.byKey, s.products[i].Key)
	s.products = slices.Delete(s.products, i, i+1)
	for accountID, items := range s.carts {
		s.carts[accountID] = slices.DeleteFunc(items, func(it cartItem) bool { return it.ProductID == id })
	}
	return nil
}

func (s *Store) ListProducts() []domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.Active {
			out = append(out, p.Product)
		}
	}
	return out
}

// SearchProducts matches active products whose name or description contains query,
// ignoring case.
func (s *Store) SearchProducts(query string) []domain.Product {
	q := strings.ToLower(strings.TrimSpace(query))
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Product{}
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
			out = append(out, p.Product)
		}
	}
	return out
}

func (s *Store) Product(id domain.ID) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.productLocked(id)
	if p == nil {
		return domain.Product{}, domain.ErrNotFound
	}
	return p.Product, nil
}

func (s *Store) productLocked(id domain.ID) *product {
	for _, p := range s.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AddItem adds quantity units of a product to the account's cart, merging with an
// existing line for the same product.
func (s *Store) AddItem(accountID int, productID domain.ID, quantity int) error {
	if quantity < 1 {
		return validationError{"quantity must be greater than 0"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.productLocked(productID)
	if p == nil || !p.Active {
		return ErrProductUnavailable
	}
	items := s.carts[accountID]
	for i, it := range items {
		if it.ProductID == productID {
			if it.Quantity+quantity > p.Stock {
				return ErrNotEnoughStock
			}
			items[i].Quantity += quantity
			return nil
		}
	}
	if quantity > p.Stock {
		return ErrNotEnoughStock
	}
	s.carts[accountID] = append(items, cartItem{
		ID:        domain.ID(uuid.NewString()),
		ProductID: productID,
		Quantity:  quantity,
		Price:     p.Price.Decimal,
	})
	return nil
}

// UpdateItem sets a line's quantity. A quantity of zero or less removes the line, and
// reports removed.
func (s *Store) UpdateItem(accountID int, itemID domain.ID, quantity int) (removed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[accountID]
	i := slices.IndexFunc(items, func(it cartItem) bool { return it.ID == itemID })
	if i < 0 {
		return false, ErrItemNotFound
	}
	if quantity <= 0 {
		s.carts[accountID] = slices.Delete(items, i, i+1)
		return true, nil
	}
	if p := s.productLocked(items[i].ProductID); p != nil && quantity > p.Stock {
		return false, ErrNotEnoughStock
	}
	items[i].Quantity = quantity
	return false, nil
}

type cartLine struct {
	cartItem
	Product domain.Product
}

func (s *Store) Cart(accountID int) []cartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[accountID]
	out := make([]cartLine, 0, len(items))
	for _, it := range items {
		line := cartLine{cartItem: it}
		if p := s.productLocked(it.ProductID); p != nil {
			line.Product = p.Product
		}
		out = append(out, line)
	}
	return out
}

// CreateOrder turns the cart into an order, takes the quantities out of stock and empties
// the cart. Nothing changes when any line cannot be fulfilled.
func (s *Store) CreateOrder(accountID int) (order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[accountID]
	if len(items) == 0 {
		return order{}, domain.ErrEmptyCart
	}
	for _, it := range items {
		p := s.productLocked(it.ProductID)
		if p == nil || !p.Active {
			return order{}, ErrProductUnavailable
		}
		if it.Quantity > p.Stock {
			return order{}, ErrNotEnoughStock
		}
	}

	s.nextOrder++
	o := order{ID: s.nextOrder, Status: "created", CreatedAt: s.now().UTC()}
	for _, it := range items {
		s.productLocked(it.ProductID).Stock -= it.Quantity
		o.Items = append(o.Items, orderItem{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	s.orders[accountID] = append(s.orders[accountID], o)
	delete(s.carts, accountID)
	return o, nil
}

func (s *Store) Orders(accountID int) []order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]order(nil), s.orders[accountID]...)
}
