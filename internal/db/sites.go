package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcus/fueltrack/internal/models"
)

// Sites are reference data and are not replicated, so their mutations do
// not touch the outbox.

// CreateSite inserts a site, generating an id when empty
func (db *DB) CreateSite(site *models.Site) error {
	if site.ID == "" {
		site.ID = NewID()
	}
	if site.Status == "" {
		site.Status = models.StatusActive
	}
	site.CreatedAt = db.now()

	return db.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO sites (id, name, location, status, created_at) VALUES (?, ?, ?, ?, ?)`,
			site.ID, site.Name, site.Location, site.Status, formatTimestamp(site.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert site: %w", err)
		}
		return nil
	})
}

// UpdateSite overwrites name, location and status of an existing site
func (db *DB) UpdateSite(site *models.Site) error {
	return db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE sites SET name = ?, location = ?, status = ? WHERE id = ?`,
			site.Name, site.Location, site.Status, site.ID)
		if err != nil {
			return fmt.Errorf("update site: %w", err)
		}
		return requireAffected(res, "site", site.ID)
	})
}

// DeleteSite removes a site. Fuel events referencing it are kept.
func (db *DB) DeleteSite(id string) error {
	return db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM sites WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete site: %w", err)
		}
		return requireAffected(res, "site", id)
	})
}

// GetSite returns a site by id
func (db *DB) GetSite(id string) (*models.Site, error) {
	row := db.conn.QueryRow(`SELECT id, name, location, status, created_at FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("site %s: %w", id, ErrNotFound)
	}
	return site, err
}

// ListSites returns all sites ordered by name
func (db *DB) ListSites() ([]models.Site, error) {
	rows, err := db.conn.Query(`SELECT id, name, location, status, created_at FROM sites ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(r rowScanner) (*models.Site, error) {
	var site models.Site
	var location sql.NullString
	var created string
	if err := r.Scan(&site.ID, &site.Name, &location, &site.Status, &created); err != nil {
		return nil, err
	}
	site.Location = location.String
	site.CreatedAt, _ = parseTimestamp(created)
	return &site, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
