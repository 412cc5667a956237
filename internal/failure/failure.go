// Package failure classifies errors from the commerce API so that every call site reacts to
// them the same way: forced logout, verbatim validation message, or a generic outage message.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"storefront/internal/domain"
)

// Kind categorizes a failed operation.
type Kind int

const (
	// KindOther is anything that is not classified below.
	KindOther Kind = iota
	// KindAuthRequired means the operation was attempted without a token. Never sent.
	KindAuthRequired
	// KindUnauthorized means the server rejected the bearer token.
	KindUnauthorized
	// KindValidation means the server rejected the request itself (4xx).
	KindValidation
	// KindNetwork covers transport failures, 5xx and unreadable responses.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	default:
		return "other"
	}
}

// User-facing messages.
const (
	MsgSignIn         = "Please sign in to continue."
	MsgSessionExpired = "Your session has expired. Please sign in again."
	MsgUnavailable    = "The store is unavailable right now. Please try again."
)

// Error is a failed call to the commerce API.
type Error struct {
	Op     string // method and path, e.g. "PUT /cart/items/7"
	Status int    // 0 when no response arrived
	Detail string // server-supplied message from the {"detail": ...} body
	Cause  error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Cause)
	case e.Detail != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Detail)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Transport wraps an error raised before any response was received.
func Transport(op string, err error) *Error {
	return &Error{Op: op, Cause: err}
}

// Status builds an error from a non-2xx response.
func Status(op string, status int, detail string) *Error {
	return &Error{Op: op, Status: status, Detail: detail}
}

// Malformed wraps a response body that could not be decoded.
func Malformed(op string, status int, err error) *Error {
	return &Error{Op: op, Status: status, Cause: err}
}

// As extracts an *Error from an error chain.
func As(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// Classify maps err onto a Kind. A 401, or a 4xx whose detail mentions the token, is
// Unauthorized.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, domain.ErrAuthRequired) {
		return KindAuthRequired
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		return KindUnauthorized
	}
	fe := As(err)
	if fe == nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindNetwork
		}
		return KindOther
	}
	switch {
	case fe.Status == http.StatusUnauthorized:
		return KindUnauthorized
	case fe.Status >= 400 && fe.Status < 500 && mentionsToken(fe.Detail):
		return KindUnauthorized
	case fe.Status == 0, fe.Status >= 500, fe.Cause != nil:
		return KindNetwork
	case fe.Status >= 400:
		return KindValidation
	}
	return KindOther
}

// Message returns the text to show the user for err. Validation failures surface the
// server's message verbatim; fallback is used when there is nothing better.
func Message(err error, fallback string) string {
	switch Classify(err) {
	case KindAuthRequired:
		return MsgSignIn
	case KindUnauthorized:
		return MsgSessionExpired
	case KindNetwork:
		return MsgUnavailable
	case KindValidation:
		if fe := As(err); fe != nil && fe.Detail != "" {
			return fe.Detail
		}
	}
	return fallback
}

func mentionsToken(detail string) bool {
	return strings.Contains(strings.ToLower(detail), "token")
}
