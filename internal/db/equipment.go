package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marcus/fueltrack/internal/models"
)

const equipmentColumns = `id, site_id, name, plate, make, model, year, category, measurement,
	default_fuel_type, status, created_at, updated_at`

// CreateEquipment inserts equipment and appends an EQUIPMENT/CREATE outbox
// entry in the same transaction.
func (db *DB) CreateEquipment(eq *models.Equipment) error {
	if eq.ID == "" {
		eq.ID = NewID()
	}
	if eq.Status == "" {
		eq.Status = models.StatusActive
	}
	if eq.Measurement == "" {
		eq.Measurement = models.MeasureDistance
	}
	eq.CreatedAt = db.now()
	eq.UpdatedAt = eq.CreatedAt

	err := db.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO equipment (`+equipmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			eq.ID, eq.SiteID, eq.Name, eq.Plate, eq.Make, eq.Model, eq.Year, eq.Category, eq.Measurement,
			eq.DefaultFuelType, eq.Status, formatTimestamp(eq.CreatedAt), formatTimestamp(eq.UpdatedAt))
		if err != nil {
			return fmt.Errorf("insert equipment: %w", err)
		}
		return db.appendOutboxTx(tx, models.EntityEquipment, eq.ID, models.ActionCreate, marshalPayload(eq))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// UpdateEquipment overwrites an equipment record and logs the update
func (db *DB) UpdateEquipment(eq *models.Equipment) error {
	eq.UpdatedAt = db.now()
	err := db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE equipment SET site_id = ?, name = ?, plate = ?, make = ?, model = ?, year = ?,
			category = ?, measurement = ?, default_fuel_type = ?, status = ?, updated_at = ? WHERE id = ?`,
			eq.SiteID, eq.Name, eq.Plate, eq.Make, eq.Model, eq.Year, eq.Category, eq.Measurement,
			eq.DefaultFuelType, eq.Status, formatTimestamp(eq.UpdatedAt), eq.ID)
		if err != nil {
			return fmt.Errorf("update equipment: %w", err)
		}
		if err := requireAffected(res, "equipment", eq.ID); err != nil {
			return err
		}
		return db.appendOutboxTx(tx, models.EntityEquipment, eq.ID, models.ActionUpdate, marshalPayload(eq))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// DeleteEquipment removes equipment and logs the delete. Fuel events that
// reference it are left untouched.
func (db *DB) DeleteEquipment(id string) error {
	err := db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM equipment WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete equipment: %w", err)
		}
		if err := requireAffected(res, "equipment", id); err != nil {
			return err
		}
		return db.appendOutboxTx(tx, models.EntityEquipment, id, models.ActionDelete, marshalPayload(map[string]string{"id": id}))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// GetEquipment returns equipment by id
func (db *DB) GetEquipment(id string) (*models.Equipment, error) {
	row := db.conn.QueryRow(`SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	eq, err := scanEquipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("equipment %s: %w", id, ErrNotFound)
	}
	return eq, err
}

// ListEquipment returns all equipment ordered by name
func (db *DB) ListEquipment() ([]models.Equipment, error) {
	rows, err := db.conn.Query(`SELECT ` + equipmentColumns + ` FROM equipment ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Equipment
	for rows.Next() {
		eq, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *eq)
	}
	return list, rows.Err()
}

func scanEquipment(r rowScanner) (*models.Equipment, error) {
	var eq models.Equipment
	var siteID, plate, mk, model, category, fuel sql.NullString
	var created, updated string
	if err := r.Scan(&eq.ID, &siteID, &eq.Name, &plate, &mk, &model, &eq.Year, &category,
		&eq.Measurement, &fuel, &eq.Status, &created, &updated); err != nil {
		return nil, err
	}
	eq.SiteID = siteID.String
	eq.Plate = plate.String
	eq.Make = mk.String
	eq.Model = model.String
	eq.Category = category.String
	eq.DefaultFuelType = fuel.String
	eq.CreatedAt, _ = parseTimestamp(created)
	eq.UpdatedAt, _ = parseTimestamp(updated)
	if eq.UpdatedAt.IsZero() {
		eq.UpdatedAt = eq.CreatedAt
	}
	return &eq, nil
}

// marshalPayload snapshots a record for outbox storage.
func marshalPayload(v any) string {
	data, _ := json.Marshal(v)
	return string(data)
}
