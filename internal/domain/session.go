package domain

import "time"

// Session is the client's view of an authenticated session. The zero value is
// unauthenticated.
type Session struct {
	Token    string    `json:"-"`
	IssuedAt time.Time `json:"issuedAt,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}
