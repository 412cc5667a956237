package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrAuthRequired is returned when an operation needs a session and none exists.
	// No request is sent in that case.
	ErrAuthRequired = errors.New("authentication required")
	// ErrForbidden indicates the session is valid but lacks the role the operation needs.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates the server rejected the bearer token.
	ErrUnauthorized = errors.New("session expired")
	// ErrEmptyCart is returned by checkout when there is nothing to pay for.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrLineNotFound indicates the cart line is not part of the current cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrMutationPending is returned by cart-wide operations while a line update is in flight.
	ErrMutationPending = errors.New("cart line update in progress")
	// ErrStaleResult indicates a confirmed response was dropped because the cart was
	// reloaded or the session ended while the request was in flight.
	ErrStaleResult = errors.New("result discarded: cart state changed")
)
