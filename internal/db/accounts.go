package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marcus/fueltrack/internal/models"
)

// First-run administrator, created only while the accounts table is empty.
const (
	DefaultAdminEmail      = "admin@fueltrack.local"
	DefaultAdminCredential = "admin"
	defaultAdminName       = "Administrator"
)

var (
	// ErrAuthFailed is returned for an unknown email or a wrong credential
	ErrAuthFailed = errors.New("invalid email or credential")
	// ErrDuplicateEmail is returned when an email is already registered
	ErrDuplicateEmail = errors.New("email already registered")
)

const accountColumns = `id, name, email, credential, role, permitted_sites, created_at`

// EnsureAdminAccount provisions the default ADMIN when no account exists.
// It reports whether an account was created.
func (db *DB) EnsureAdminAccount() (bool, error) {
	created := false
	err := db.writeTx(func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		admin := &models.Account{
			ID:         NewID(),
			Name:       defaultAdminName,
			Email:      DefaultAdminEmail,
			Credential: DefaultAdminCredential,
			Role:       models.RoleAdmin,
			CreatedAt:  db.now(),
		}
		if err := insertAccountTx(tx, admin); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// CreateAccount inserts an account
func (db *DB) CreateAccount(a *models.Account) error {
	if a.Email == "" {
		return errors.New("email is required")
	}
	if !models.IsValidRole(a.Role) {
		return fmt.Errorf("invalid role %q", a.Role)
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	a.CreatedAt = db.now()
	return db.writeTx(func(tx *sql.Tx) error {
		return insertAccountTx(tx, a)
	})
}

// UpdateAccount overwrites name, credential, role and permitted sites
func (db *DB) UpdateAccount(a *models.Account) error {
	sites, _ := json.Marshal(nonNil(a.PermittedSites))
	return db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE accounts SET name = ?, credential = ?, role = ?, permitted_sites = ? WHERE id = ?`,
			a.Name, a.Credential, a.Role, string(sites), a.ID)
		if err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		return requireAffected(res, "account", a.ID)
	})
}

// DeleteAccount removes an account
func (db *DB) DeleteAccount(id string) error {
	return db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		return requireAffected(res, "account", id)
	})
}

// GetAccount returns an account by id
func (db *DB) GetAccount(id string) (*models.Account, error) {
	a, err := scanAccount(db.conn.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, err
}

// GetAccountByEmail looks an account up by exact email
func (db *DB) GetAccountByEmail(email string) (*models.Account, error) {
	a, err := scanAccount(db.conn.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", email, ErrNotFound)
	}
	return a, err
}

// ListAccounts returns all accounts ordered by email
func (db *DB) ListAccounts() ([]models.Account, error) {
	rows, err := db.conn.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// Authenticate matches email exactly and compares the stored credential.
// Credentials are kept in plain text; this is a local convenience gate,
// not a security boundary.
func (db *DB) Authenticate(email, credential string) (*models.Account, error) {
	a, err := db.GetAccountByEmail(email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}
	if a.Credential != credential {
		return nil, ErrAuthFailed
	}
	return a, nil
}

func insertAccountTx(tx *sql.Tx, a *models.Account) error {
	sites, _ := json.Marshal(nonNil(a.PermittedSites))
	_, err := tx.Exec(`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.Credential, a.Role, string(sites), formatTimestamp(a.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%s: %w", a.Email, ErrDuplicateEmail)
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func scanAccount(r rowScanner) (*models.Account, error) {
	var a models.Account
	var sites, created string
	if err := r.Scan(&a.ID, &a.Name, &a.Email, &a.Credential, &a.Role, &sites, &created); err != nil {
		return nil, err
	}
	if sites != "" {
		if err := json.Unmarshal([]byte(sites), &a.PermittedSites); err != nil {
			return nil, fmt.Errorf("decode permitted sites for %s: %w", a.Email, err)
		}
	}
	a.CreatedAt, _ = parseTimestamp(created)
	return &a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
