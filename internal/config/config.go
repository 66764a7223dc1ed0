// Package config persists per-workspace state in <dataDir>/config.json.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	configFile = "config.json"
	lockFile   = "config.json.lock"
)

// Workspace is the state kept between commands in one data directory
type Workspace struct {
	AccountID    string     `json:"account_id,omitempty"`
	AccountEmail string     `json:"account_email,omitempty"`
	LoggedInAt   *time.Time `json:"logged_in_at,omitempty"`
	LastImportAt *time.Time `json:"last_import_at,omitempty"`
}

// Load reads the workspace state from disk
func Load(baseDir string) (*Workspace, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, configFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Workspace{}, nil
		}
		return nil, err
	}

	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// Save writes the workspace state using atomic write (temp file + rename)
func Save(baseDir string, ws *Workspace) error {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(baseDir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, filepath.Join(baseDir, configFile))
}

// update applies fn to the stored state under the config lock
func update(baseDir string, fn func(ws *Workspace)) error {
	return withConfigLock(baseDir, func() error {
		ws, err := Load(baseDir)
		if err != nil {
			return err
		}
		fn(ws)
		return Save(baseDir, ws)
	})
}

// withConfigLock serializes read-modify-write cycles on config.json
func withConfigLock(baseDir string, fn func() error) error {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(baseDir, lockFile), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := lockFileExclusive(f); err != nil {
		return err
	}
	defer unlockFile(f)

	return fn()
}

// SetAccount records the logged-in account
func SetAccount(baseDir, accountID, email string, at time.Time) error {
	return update(baseDir, func(ws *Workspace) {
		ws.AccountID = accountID
		ws.AccountEmail = email
		ws.LoggedInAt = &at
	})
}

// ClearAccount forgets the logged-in account
func ClearAccount(baseDir string) error {
	return update(baseDir, func(ws *Workspace) {
		ws.AccountID = ""
		ws.AccountEmail = ""
		ws.LoggedInAt = nil
	})
}

// GetAccountID returns the logged-in account id, or ""
func GetAccountID(baseDir string) (string, error) {
	ws, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return ws.AccountID, nil
}

// SetLastImport records when remote rows were last imported
func SetLastImport(baseDir string, at time.Time) error {
	return update(baseDir, func(ws *Workspace) {
		ws.LastImportAt = &at
	})
}
