// Package session tracks which local account is logged in to a data
// directory.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/fueltrack/internal/config"
	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
)

// ErrNotLoggedIn is returned when no account is logged in
var ErrNotLoggedIn = errors.New("not logged in: run 'fuel login' first")

// Accounts is the part of the store sessions need
type Accounts interface {
	Authenticate(email, credential string) (*models.Account, error)
	GetAccount(id string) (*models.Account, error)
}

// Login authenticates and records the account for later commands. It
// returns db.ErrAuthFailed for an unknown email or wrong credential.
func Login(accounts Accounts, baseDir, email, credential string) (*models.Account, error) {
	email = strings.TrimSpace(email)
	if email == "" || credential == "" {
		return nil, db.ErrAuthFailed
	}

	a, err := accounts.Authenticate(email, credential)
	if err != nil {
		return nil, err
	}
	if err := config.SetAccount(baseDir, a.ID, a.Email, time.Now()); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return a, nil
}

// Current returns the logged-in account. A session whose account has been
// deleted is cleared.
func Current(accounts Accounts, baseDir string) (*models.Account, error) {
	id, err := config.GetAccountID(baseDir)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if id == "" {
		return nil, ErrNotLoggedIn
	}

	a, err := accounts.GetAccount(id)
	if errors.Is(err, db.ErrNotFound) {
		_ = config.ClearAccount(baseDir)
		return nil, ErrNotLoggedIn
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Logout forgets the logged-in account. It is not an error to log out
// twice.
func Logout(baseDir string) error {
	return config.ClearAccount(baseDir)
}

// RequireAdmin returns the current account if it has the ADMIN role.
func RequireAdmin(accounts Accounts, baseDir string) (*models.Account, error) {
	a, err := Current(accounts, baseDir)
	if err != nil {
		return nil, err
	}
	if !a.IsAdmin() {
		return nil, fmt.Errorf("%s is not an administrator", a.Email)
	}
	return a, nil
}
