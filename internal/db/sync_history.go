package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/fueltrack/internal/models"
)

// maxSyncHistory bounds the sync_history table
const maxSyncHistory = 500

// RecordDrain stores a summary of one drain pass and prunes old rows.
func (db *DB) RecordDrain(pass *models.DrainPass) error {
	return db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO sync_history (trigger_kind, pushed, dropped, failed, escalated, error, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, pass.Trigger, pass.Pushed, pass.Dropped, pass.Failed, pass.Escalated, pass.Error,
			formatTimestamp(pass.StartedAt), pass.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("record drain: %w", err)
		}
		pass.ID, _ = res.LastInsertId()
		return pruneSyncHistory(tx, maxSyncHistory)
	})
}

// RecentDrains returns the last n passes, oldest first.
func (db *DB) RecentDrains(n int) ([]models.DrainPass, error) {
	rows, err := db.conn.Query(`
		SELECT id, trigger_kind, pushed, dropped, failed, escalated, COALESCE(error, ''), started_at, duration_ms
		FROM sync_history
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var passes []models.DrainPass
	for rows.Next() {
		var p models.DrainPass
		var started string
		var ms int64
		if err := rows.Scan(&p.ID, &p.Trigger, &p.Pushed, &p.Dropped, &p.Failed, &p.Escalated, &p.Error, &started, &ms); err != nil {
			return nil, err
		}
		p.StartedAt, err = parseTimestamp(started)
		if err != nil {
			return nil, err
		}
		p.Duration = time.Duration(ms) * time.Millisecond
		passes = append(passes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(passes)-1; i < j; i, j = i+1, j-1 {
		passes[i], passes[j] = passes[j], passes[i]
	}
	return passes, nil
}

func pruneSyncHistory(tx *sql.Tx, maxRows int) error {
	_, err := tx.Exec(`
		DELETE FROM sync_history WHERE id NOT IN (
			SELECT id FROM sync_history ORDER BY id DESC LIMIT ?
		)
	`, maxRows)
	return err
}
