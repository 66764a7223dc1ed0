package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marcus/fueltrack/internal/consumption"
	"github.com/marcus/fueltrack/internal/models"
)

const fuelEventColumns = `id, site_id, equipment_id, event_date, previous_reading, current_reading,
	liters, fuel_type, price_per_liter, total_cost, average_consumption, cost_per_unit,
	operator_name, invoice_number, requisition_number, notes, sync_status,
	created_at, updated_at, last_updated_by`

// FuelEventFilter narrows ListFuelEvents. Zero values match everything.
type FuelEventFilter struct {
	SiteIDs     []string // nil means every site
	EquipmentID string
	SyncStatus  models.SyncStatus
	Limit       int
}

func validateFuelEvent(ev *models.FuelEvent) error {
	switch {
	case ev.SiteID == "":
		return errors.New("site is required")
	case ev.EquipmentID == "":
		return errors.New("equipment is required")
	case ev.EventDate.IsZero():
		return errors.New("event date is required")
	case ev.Liters < 0:
		return errors.New("liters cannot be negative")
	case ev.PricePerLiter < 0:
		return errors.New("price per liter cannot be negative")
	}
	return nil
}

// CreateFuelEvent stores a new refueling. The previous reading and derived
// metrics are resolved inside the write transaction, the event is marked
// PENDING and a FUELEVENT/CREATE outbox entry is appended atomically.
func (db *DB) CreateFuelEvent(ev *models.FuelEvent, updatedBy string) error {
	if err := validateFuelEvent(ev); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = NewID()
	}
	now := db.now()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	ev.LastUpdatedBy = updatedBy
	ev.SyncStatus = models.SyncPending

	err := db.writeTx(func(tx *sql.Tx) error {
		prev, err := previousReadingTx(tx, ev)
		if err != nil {
			return err
		}
		ev.PreviousReading = prev
		consumption.Apply(ev)

		if err := insertFuelEventTx(tx, ev); err != nil {
			return err
		}
		return db.appendOutboxTx(tx, models.EntityFuelEvent, ev.ID, models.ActionCreate, marshalPayload(ev))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// UpdateFuelEvent overwrites an existing event, recomputing derived metrics
// and returning it to PENDING.
func (db *DB) UpdateFuelEvent(ev *models.FuelEvent, updatedBy string) error {
	if err := validateFuelEvent(ev); err != nil {
		return err
	}

	err := db.writeTx(func(tx *sql.Tx) error {
		var created string
		err := tx.QueryRow(`SELECT created_at FROM fuel_events WHERE id = ?`, ev.ID).Scan(&created)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("fuel event %s: %w", ev.ID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		ev.CreatedAt, _ = parseTimestamp(created)
		ev.UpdatedAt = db.now()
		ev.LastUpdatedBy = updatedBy
		ev.SyncStatus = models.SyncPending

		prev, err := previousReadingTx(tx, ev)
		if err != nil {
			return err
		}
		ev.PreviousReading = prev
		consumption.Apply(ev)

		_, err = tx.Exec(`
			UPDATE fuel_events SET site_id = ?, equipment_id = ?, event_date = ?, previous_reading = ?,
			       current_reading = ?, liters = ?, fuel_type = ?, price_per_liter = ?, total_cost = ?,
			       average_consumption = ?, cost_per_unit = ?, operator_name = ?, invoice_number = ?,
			       requisition_number = ?, notes = ?, sync_status = ?, updated_at = ?, last_updated_by = ?
			WHERE id = ?
		`, ev.SiteID, ev.EquipmentID, formatDate(ev.EventDate), nullFloat(ev.PreviousReading),
			ev.CurrentReading, ev.Liters, ev.FuelType, ev.PricePerLiter, ev.TotalCost,
			ev.AverageConsumption, ev.CostPerUnit, ev.OperatorName, ev.InvoiceNumber,
			ev.RequisitionNumber, ev.Notes, ev.SyncStatus, formatTimestamp(ev.UpdatedAt), ev.LastUpdatedBy,
			ev.ID)
		if err != nil {
			return fmt.Errorf("update fuel event: %w", err)
		}
		return db.appendOutboxTx(tx, models.EntityFuelEvent, ev.ID, models.ActionUpdate, marshalPayload(ev))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// DeleteFuelEvent removes an event locally and logs a DELETE entry. Remote
// rows are not removed; the drain drops DELETE entries without a call.
func (db *DB) DeleteFuelEvent(id string) error {
	err := db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM fuel_events WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete fuel event: %w", err)
		}
		if err := requireAffected(res, "fuel event", id); err != nil {
			return err
		}
		return db.appendOutboxTx(tx, models.EntityFuelEvent, id, models.ActionDelete, marshalPayload(map[string]string{"id": id}))
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// GetFuelEvent returns one event by id
func (db *DB) GetFuelEvent(id string) (*models.FuelEvent, error) {
	row := db.conn.QueryRow(`SELECT `+fuelEventColumns+` FROM fuel_events WHERE id = ?`, id)
	ev, err := scanFuelEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fuel event %s: %w", id, ErrNotFound)
	}
	return ev, err
}

// ListFuelEvents returns events newest first
func (db *DB) ListFuelEvents(f FuelEventFilter) ([]models.FuelEvent, error) {
	var where []string
	var args []any

	if f.SiteIDs != nil {
		if len(f.SiteIDs) == 0 {
			return nil, nil
		}
		where = append(where, "site_id IN ("+placeholders(len(f.SiteIDs))+")")
		for _, id := range f.SiteIDs {
			args = append(args, id)
		}
	}
	if f.EquipmentID != "" {
		where = append(where, "equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.SyncStatus != "" {
		where = append(where, "sync_status = ?")
		args = append(args, f.SyncStatus)
	}

	query := `SELECT ` + fuelEventColumns + ` FROM fuel_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY event_date DESC, created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.FuelEvent
	for rows.Next() {
		ev, err := scanFuelEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// CountFuelEventsByStatus returns the number of events per sync status
func (db *DB) CountFuelEventsByStatus() (map[models.SyncStatus]int, error) {
	rows, err := db.conn.Query(`SELECT sync_status, COUNT(*) FROM fuel_events GROUP BY sync_status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.SyncStatus]int)
	for rows.Next() {
		var status models.SyncStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// previousReadingTx finds the current reading of the latest event of the
// same equipment ordered strictly before ev by (event_date, created_at).
func previousReadingTx(tx *sql.Tx, ev *models.FuelEvent) (*float64, error) {
	date := formatDate(ev.EventDate)
	created := formatTimestamp(ev.CreatedAt)

	var reading float64
	err := tx.QueryRow(`
		SELECT current_reading FROM fuel_events
		WHERE equipment_id = ? AND id <> ?
		  AND (event_date < ? OR (event_date = ? AND created_at < ?))
		ORDER BY event_date DESC, created_at DESC
		LIMIT 1
	`, ev.EquipmentID, ev.ID, date, date, created).Scan(&reading)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous reading: %w", err)
	}
	return &reading, nil
}

func insertFuelEventTx(tx *sql.Tx, ev *models.FuelEvent) error {
	_, err := tx.Exec(`INSERT INTO fuel_events (`+fuelEventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SiteID, ev.EquipmentID, formatDate(ev.EventDate), nullFloat(ev.PreviousReading),
		ev.CurrentReading, ev.Liters, ev.FuelType, ev.PricePerLiter, ev.TotalCost,
		ev.AverageConsumption, ev.CostPerUnit, ev.OperatorName, ev.InvoiceNumber,
		ev.RequisitionNumber, ev.Notes, ev.SyncStatus,
		formatTimestamp(ev.CreatedAt), formatTimestamp(ev.UpdatedAt), ev.LastUpdatedBy)
	if err != nil {
		return fmt.Errorf("insert fuel event: %w", err)
	}
	return nil
}

func scanFuelEvent(r rowScanner) (*models.FuelEvent, error) {
	var ev models.FuelEvent
	var date, created, updated string
	var prev sql.NullFloat64
	var fuelType, operator, invoice, requisition, notes, updatedBy sql.NullString

	err := r.Scan(&ev.ID, &ev.SiteID, &ev.EquipmentID, &date, &prev, &ev.CurrentReading,
		&ev.Liters, &fuelType, &ev.PricePerLiter, &ev.TotalCost, &ev.AverageConsumption, &ev.CostPerUnit,
		&operator, &invoice, &requisition, &notes, &ev.SyncStatus,
		&created, &updated, &updatedBy)
	if err != nil {
		return nil, err
	}

	if prev.Valid {
		v := prev.Float64
		ev.PreviousReading = &v
	}
	ev.EventDate, _ = parseDate(date)
	ev.CreatedAt, _ = parseTimestamp(created)
	ev.UpdatedAt, _ = parseTimestamp(updated)
	ev.FuelType = fuelType.String
	ev.OperatorName = operator.String
	ev.InvoiceNumber = invoice.String
	ev.RequisitionNumber = requisition.String
	ev.Notes = notes.String
	ev.LastUpdatedBy = updatedBy.String
	return &ev, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
