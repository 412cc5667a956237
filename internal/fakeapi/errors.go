package fakeapi

import (
	"errors"
	"net/http"

	"storefront/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrProductUnavailable = errors.New("product not available")
	ErrNotEnoughStock     = errors.New("not enough stock")
	ErrItemNotFound       = errors.New("item not found")
	ErrProductInOrders    = errors.New("product is used in orders")
)

// validationError is a request the server refuses with its own message.
type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

// statusFor maps an error onto the status code and {"detail"} message the API answers with.
func statusFor(err error) (int, string) {
	var ve validationError
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.msg
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, ErrEmailTaken):
		return http.StatusConflict, "Email already registered"
	case errors.Is(err, ErrProductUnavailable):
		return http.StatusNotFound, "Product not available"
	case errors.Is(err, ErrNotEnoughStock):
		return http.StatusConflict, "Not enough stock"
	case errors.Is(err, ErrProductInOrders):
		return http.StatusBadRequest, "Product is used in orders and cannot be deleted"
	case errors.Is(err, ErrItemNotFound):
		return http.StatusNotFound, "Item not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "Cart is empty"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
