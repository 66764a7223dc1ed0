// Package sync drains the local outbox to the remote spreadsheet and
// imports remote rows back into the local store.
package sync

import (
	"errors"
	"time"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
)

// Defaults for Options
const (
	DefaultInterval   = 30 * time.Second
	DefaultMaxRetries = 5
)

// ErrDrainInProgress is returned by SyncNow when a pass is already running.
var ErrDrainInProgress = errors.New("sync already in progress")

// Trigger names why a drain pass started
type Trigger string

const (
	TriggerTimer     Trigger = "timer"
	TriggerReconnect Trigger = "reconnect"
	TriggerManual    Trigger = "manual"
	TriggerEnqueue   Trigger = "enqueue"
)

// Store is the slice of the local store the engine needs.
type Store interface {
	WebhookURL() (string, error)
	OAuthToken() (string, error)
	SpreadsheetID() (string, error)
	SetSetting(key, value string) error

	ListPendingOutbox() ([]models.OutboxEntry, error)
	DequeueOutbox(ids ...int64) error
	CompleteFuelBatch(entries []models.OutboxEntry) error
	FailFuelBatch(entries []models.OutboxEntry, ceiling int) (int, error)
	EscalateOutbox(entries []models.OutboxEntry) error

	GetSite(id string) (*models.Site, error)
	GetEquipment(id string) (*models.Equipment, error)
	ListFuelEvents(f db.FuelEventFilter) ([]models.FuelEvent, error)
	ImportFuelEvents(events []models.FuelEvent) (int, error)

	RecordDrain(pass *models.DrainPass) error
}

// Connectivity reports whether the network is believed reachable.
type Connectivity interface {
	Online() bool
}

// DrainResult summarizes one pass.
type DrainResult struct {
	Skipped      bool   // the queue was not touched
	SkipReason   string // "offline", "unconfigured" or "empty"
	Pushed       int    // entries delivered and dequeued
	Dropped      int    // entries dequeued without a network call
	Failed       int    // entries whose retry count was incremented
	Escalated    int    // entries moved to ERROR this pass
	CollectionID string // spreadsheet created by this pass, if any
}
