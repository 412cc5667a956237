// Package catalog reads products from the commerce API. Reads are public, so their failures
// are returned to the caller and never end the session. Deleting a product needs an admin
// session.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"storefront/internal/domain"
	"storefront/internal/failure"
)

// MinSearchLength is the shortest query sent to the search endpoint. Shorter queries list
// the whole catalog.
const MinSearchLength = 2

type API interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	GetProduct(ctx context.Context, id domain.ID) (domain.Product, error)
	DeleteProduct(ctx context.Context, token string, id domain.ID) error
}

// Session is implemented by *session.Manager.
type Session interface {
	Token() (string, bool)
	HandleFailure(ctx context.Context, token string, err error) bool
}

type Service struct {
	api  API
	sess Session
}

// New creates a Service. sess may be nil when only the public reads are used.
func New(api API, sess Session) *Service {
	return &Service{api: api, sess: sess}
}

func (s *Service) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.api.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *Service) Search(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return s.List(ctx)
	}
	products, err := s.api.SearchProducts(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// Get returns domain.ErrNotFound when the API answers 404.
func (s *Service) Get(ctx context.Context, id domain.ID) (domain.Product, error) {
	p, err := s.api.GetProduct(ctx, id)
	if err != nil {
		if fe := failure.As(err); fe != nil && fe.Status == http.StatusNotFound {
			return domain.Product{}, fmt.Errorf("get product %s: %w", id, domain.ErrNotFound)
		}
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return p, nil
}

// Delete removes a product from the catalog. A rejected token ends the session; a valid
// session without the admin role gets domain.ErrForbidden.
func (s *Service) Delete(ctx context.Context, id domain.ID) error {
	if s.sess == nil {
		return domain.ErrAuthRequired
	}
	token, ok := s.sess.Token()
	if !ok {
		return domain.ErrAuthRequired
	}
	err := s.api.DeleteProduct(ctx, token, id)
	if err == nil {
		return nil
	}
	if s.sess.HandleFailure(ctx, token, err) {
		if current, ok := s.sess.Token(); ok && current != token {
			return fmt.Errorf("delete product %s: %w", id, domain.ErrStaleResult)
		}
		return fmt.Errorf("delete product %s: %w: %w", id, domain.ErrUnauthorized, err)
	}
	if fe := failure.As(err); fe != nil {
		switch fe.Status {
		case http.StatusNotFound:
			return fmt.Errorf("delete product %s: %w", id, domain.ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("delete product %s: %w", id, domain.ErrForbidden)
		}
	}
	return fmt.Errorf("delete product %s: %w", id, err)
}
