package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/fueltrack/internal/models"
)

const outboxColumns = `id, entity_type, entity_id, action, payload, created_at, retry_count, last_attempt, status`

// appendOutboxTx records a mutation in the outbox as part of tx. Callers
// run notifyEnqueue after commit.
func (db *DB) appendOutboxTx(tx *sql.Tx, entityType models.EntityType, entityID string, action models.ActionType, payload string) error {
	_, err := tx.Exec(`
		INSERT INTO outbox (entity_type, entity_id, action, payload, created_at, retry_count, status)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, entityType, entityID, action, payload, formatTimestamp(db.now()), models.OutboxPending)
	if err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

// EnqueueOutbox appends a standalone entry with retry_count 0 and status
// PENDING, fills in its id and wakes the sync engine.
func (db *DB) EnqueueOutbox(entry *models.OutboxEntry) error {
	entry.CreatedAt = db.now()
	entry.RetryCount = 0
	entry.LastAttempt = nil
	entry.Status = models.OutboxPending

	err := db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO outbox (entity_type, entity_id, action, payload, created_at, retry_count, status)
			VALUES (?, ?, ?, ?, ?, 0, ?)
		`, entry.EntityType, entry.EntityID, entry.Action, entry.Payload, formatTimestamp(entry.CreatedAt), entry.Status)
		if err != nil {
			return fmt.Errorf("append outbox: %w", err)
		}
		entry.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return err
	}
	db.notifyEnqueue()
	return nil
}

// ListPendingOutbox returns PENDING entries in insertion order
func (db *DB) ListPendingOutbox() ([]models.OutboxEntry, error) {
	return db.listOutbox(models.OutboxPending)
}

// ListErroredOutbox returns entries that hit the retry ceiling
func (db *DB) ListErroredOutbox() ([]models.OutboxEntry, error) {
	return db.listOutbox(models.OutboxError)
}

func (db *DB) listOutbox(status models.OutboxStatus) ([]models.OutboxEntry, error) {
	rows, err := db.conn.Query(`SELECT `+outboxColumns+` FROM outbox WHERE status = ? ORDER BY id ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	var entries []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		var created string
		var last sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.Payload,
			&created, &e.RetryCount, &last, &e.Status); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = parseTimestamp(created)
		if last.Valid {
			if t, err := parseTimestamp(last.String); err == nil {
				e.LastAttempt = &t
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountOutbox returns the number of entries per status
func (db *DB) CountOutbox() (map[models.OutboxStatus]int, error) {
	rows, err := db.conn.Query(`SELECT status, COUNT(*) FROM outbox GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.OutboxStatus]int)
	for rows.Next() {
		var status models.OutboxStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DequeueOutbox removes entries by id
func (db *DB) DequeueOutbox(ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	return db.writeTx(func(tx *sql.Tx) error {
		return deleteOutboxTx(tx, ids)
	})
}

func deleteOutboxTx(tx *sql.Tx, ids []int64) error {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := tx.Exec(`DELETE FROM outbox WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return fmt.Errorf("dequeue outbox: %w", err)
	}
	return nil
}

// CompleteFuelBatch dequeues delivered FUELEVENT entries and marks their
// events SYNCED. An event that still has another PENDING entry (an edit
// made while the push was in flight) stays PENDING.
func (db *DB) CompleteFuelBatch(entries []models.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}

	return db.writeTx(func(tx *sql.Tx) error {
		if err := deleteOutboxTx(tx, ids); err != nil {
			return err
		}
		for _, entityID := range distinctEntities(entries) {
			_, err := tx.Exec(`
				UPDATE fuel_events SET sync_status = ?
				WHERE id = ? AND NOT EXISTS (
					SELECT 1 FROM outbox WHERE entity_id = ? AND entity_type = ? AND status = ?
				)
			`, models.SyncSynced, entityID, entityID, models.EntityFuelEvent, models.OutboxPending)
			if err != nil {
				return fmt.Errorf("mark synced: %w", err)
			}
		}
		return nil
	})
}

// FailFuelBatch records a failed push attempt on every entry. Entries whose
// retry count reaches ceiling move to ERROR along with their event. It
// returns how many entries were escalated.
func (db *DB) FailFuelBatch(entries []models.OutboxEntry, ceiling int) (int, error) {
	attempt := formatTimestamp(db.now())
	escalated := 0

	err := db.writeTx(func(tx *sql.Tx) error {
		escalated = 0
		for _, e := range entries {
			retries := e.RetryCount + 1
			status := models.OutboxPending
			if retries >= ceiling {
				status = models.OutboxError
			}
			_, err := tx.Exec(`UPDATE outbox SET retry_count = ?, last_attempt = ?, status = ? WHERE id = ?`,
				retries, attempt, status, e.ID)
			if err != nil {
				return fmt.Errorf("record attempt: %w", err)
			}
			if status == models.OutboxError {
				escalated++
				if err := markEventErrorTx(tx, e); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return escalated, err
}

// EscalateOutbox moves entries straight to ERROR. Used for entries that can
// never be delivered, such as an undecodable payload.
func (db *DB) EscalateOutbox(entries []models.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	attempt := formatTimestamp(db.now())
	return db.writeTx(func(tx *sql.Tx) error {
		for _, e := range entries {
			_, err := tx.Exec(`UPDATE outbox SET status = ?, last_attempt = ? WHERE id = ?`,
				models.OutboxError, attempt, e.ID)
			if err != nil {
				return fmt.Errorf("escalate outbox: %w", err)
			}
			if err := markEventErrorTx(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func markEventErrorTx(tx *sql.Tx, e models.OutboxEntry) error {
	if e.EntityType != models.EntityFuelEvent {
		return nil
	}
	if _, err := tx.Exec(`UPDATE fuel_events SET sync_status = ? WHERE id = ?`, models.SyncError, e.EntityID); err != nil {
		return fmt.Errorf("mark event error: %w", err)
	}
	return nil
}

// RequeueErrored resets ERROR entries to PENDING with a fresh retry budget
// and returns their events to PENDING.
func (db *DB) RequeueErrored() (int, error) {
	var n int64
	err := db.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE fuel_events SET sync_status = ?
			WHERE sync_status = ? AND id IN (
				SELECT entity_id FROM outbox WHERE status = ? AND entity_type = ?
			)
		`, models.SyncPending, models.SyncError, models.OutboxError, models.EntityFuelEvent)
		if err != nil {
			return fmt.Errorf("reset events: %w", err)
		}
		res, err := tx.Exec(`UPDATE outbox SET status = ?, retry_count = 0, last_attempt = NULL WHERE status = ?`,
			models.OutboxPending, models.OutboxError)
		if err != nil {
			return fmt.Errorf("requeue outbox: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.notifyEnqueue()
	}
	return int(n), nil
}

// PurgeErrored deletes ERROR entries. Their events keep the ERROR status.
func (db *DB) PurgeErrored() (int, error) {
	var n int64
	err := db.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM outbox WHERE status = ?`, models.OutboxError)
		if err != nil {
			return fmt.Errorf("purge outbox: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}

// OldestPendingAge returns how long the oldest PENDING entry has waited,
// or 0 when the queue is empty.
func (db *DB) OldestPendingAge() (time.Duration, error) {
	var created sql.NullString
	err := db.conn.QueryRow(`SELECT MIN(created_at) FROM outbox WHERE status = ?`, models.OutboxPending).Scan(&created)
	if err != nil {
		return 0, err
	}
	if !created.Valid {
		return 0, nil
	}
	t, err := parseTimestamp(created.String)
	if err != nil {
		return 0, err
	}
	return db.now().Sub(t), nil
}

func distinctEntities(entries []models.OutboxEntry) []string {
	seen := make(map[string]bool, len(entries))
	var ids []string
	for _, e := range entries {
		if !seen[e.EntityID] {
			seen[e.EntityID] = true
			ids = append(ids, e.EntityID)
		}
	}
	return ids
}
