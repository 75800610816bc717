package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// AdminAuthenticator checks the single configured admin account.
type AdminAuthenticator struct {
	username string
	hash     []byte
}

// NewAdminAuthenticator builds an authenticator from config.
// a bcrypt hash takes precedence; a plain password is hashed once at startup.
func NewAdminAuthenticator(username, password, passwordHash string) (*AdminAuthenticator, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}

	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		return &AdminAuthenticator{username: username, hash: []byte(passwordHash)}, nil
	}

	if password == "" {
		return nil, errors.New("admin password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}
	return &AdminAuthenticator{username: username, hash: hash}, nil
}

// Authenticate returns ErrInvalidCredentials unless both fields match.
func (a *AdminAuthenticator) Authenticate(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1

	// always run bcrypt so a wrong username costs the same as a wrong password
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))

	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
