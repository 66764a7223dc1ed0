package db

import (
	"database/sql"
	"fmt"

	"github.com/marcus/fueltrack/internal/models"
)

// ImportFuelEvents inserts remote events that do not exist locally, all in
// one transaction. Local rows always win: an id already present is skipped
// even if the remote copy differs. Inserted events are SYNCED with a fresh
// created_at. It returns the number of inserted events.
func (db *DB) ImportFuelEvents(events []models.FuelEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	inserted := 0
	err := db.writeTx(func(tx *sql.Tx) error {
		inserted = 0
		for i := range events {
			ev := events[i]
			if ev.ID == "" {
				continue
			}

			var exists int
			if err := tx.QueryRow(`SELECT COUNT(*) FROM fuel_events WHERE id = ?`, ev.ID).Scan(&exists); err != nil {
				return fmt.Errorf("check %s: %w", ev.ID, err)
			}
			if exists > 0 {
				continue
			}

			now := db.now()
			ev.CreatedAt = now
			if ev.UpdatedAt.IsZero() {
				ev.UpdatedAt = now
			}
			ev.SyncStatus = models.SyncSynced
			if err := insertFuelEventTx(tx, &ev); err != nil {
				return err
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
