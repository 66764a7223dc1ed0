package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// Settings keys for remote configuration
const (
	SettingSpreadsheetID = "spreadsheet_id"
	SettingWebhookURL    = "webhook_url"
	SettingOAuthToken    = "oauth_token"
)

// GetSetting returns a setting value, or "" when unset
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting. An empty value clears it.
func (db *DB) SetSetting(key, value string) error {
	if value == "" {
		return db.ClearSetting(key)
	}
	return db.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("set setting %s: %w", key, err)
		}
		return nil
	})
}

// ClearSetting removes a setting
func (db *DB) ClearSetting(key string) error {
	return db.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM settings WHERE key = ?`, key)
		return err
	})
}

// SpreadsheetID returns the persisted remote spreadsheet id
func (db *DB) SpreadsheetID() (string, error) {
	return db.GetSetting(SettingSpreadsheetID)
}

// WebhookURL returns the configured anonymous webhook endpoint
func (db *DB) WebhookURL() (string, error) {
	return db.GetSetting(SettingWebhookURL)
}

// OAuthToken returns the cached OAuth token as raw JSON
func (db *DB) OAuthToken() (string, error) {
	return db.GetSetting(SettingOAuthToken)
}
