package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// Credentials is the single admin account.
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials uses passwordHash when given, otherwise hashes password.
func NewCredentials(username, password, passwordHash string) (*Credentials, error) {
	if username == "" {
		return nil, errors.New("admin username is required")
	}
	if passwordHash != "" {
		if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
			return nil, fmt.Errorf("invalid admin password hash: %w", err)
		}
		return &Credentials{username: username, hash: []byte(passwordHash)}, nil
	}
	if password == "" {
		return nil, errors.New("admin password is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin password: %w", err)
	}
	return &Credentials{username: username, hash: hash}, nil
}

// Check always runs bcrypt so a wrong username costs the same as a wrong
// password.
func (c *Credentials) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
