package fakeapi

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const passwordMin = 8

type account struct {
	ID           int
	Email        string
	PasswordHash string
	Role         string
}

const roleAdmin = "admin"

type accounts struct {
	mu      sync.RWMutex
	byEmail map[string]*account
	byID    map[int]*account
	nextID  int
}

func newAccounts() *accounts {
	return &accounts{
		byEmail: make(map[string]*account),
		byID:    make(map[int]*account),
	}
}

func (a *accounts) Register(email, password, role string) (account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return account{}, validationError{"value is not a valid email address"}
	}
	if err := validatePassword(password, passwordMin); err != nil {
		return account{}, err
	}
	if role == "" {
		role = "user"
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(password)), bcrypt.DefaultCost)
	if err != nil {
		return account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.byEmail[email]; ok {
		return account{}, ErrEmailTaken
	}
	a.nextID++
	acc := &account{ID: a.nextID, Email: email, PasswordHash: string(hashed), Role: role}
	a.byEmail[email] = acc
	a.byID[acc.ID] = acc
	return *acc, nil
}

func (a *accounts) Authenticate(email, password string) (account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	a.mu.RLock()
	acc, ok := a.byEmail[email]
	a.mu.RUnlock()
	if !ok {
		return account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return account{}, ErrInvalidCredentials
	}
	return *acc, nil
}

func (a *accounts) Get(id int) (account, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.byID[id]
	if !ok {
		return account{}, false
	}
	return *acc, true
}

func validatePassword(p string, min int) error {
	trimmed := strings.TrimSpace(p)
	if len(trimmed) < min {
		return validationError{fmt.Sprintf("password must be at least %d characters", min)}
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return validationError{"password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number"}
	}
	return nil
}
