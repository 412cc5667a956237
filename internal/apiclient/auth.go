package apiclient

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/failure"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", credentials{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", failure.Malformed("POST /auth/login", http.StatusOK, errors.New("response has no access_token"))
	}
	return out.AccessToken, nil
}

// Register creates an account. The response body is not used.
func (c *Client) Register(ctx context.Context, email, password, role string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", "", credentials{Email: email, Password: password, Role: role}, nil)
}
