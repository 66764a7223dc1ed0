package monitor

import (
	"strings"
	"time"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
)

// Source is the read side of the store the monitor displays
type Source interface {
	CountOutbox() (map[models.OutboxStatus]int, error)
	CountFuelEventsByStatus() (map[models.SyncStatus]int, error)
	OldestPendingAge() (time.Duration, error)
	RecentDrains(n int) ([]models.DrainPass, error)
	ListFuelEvents(f db.FuelEventFilter) ([]models.FuelEvent, error)
	ListSites() ([]models.Site, error)
	ListEquipment() ([]models.Equipment, error)
}

// EventRow is one fuel event with its names resolved
type EventRow struct {
	Event     models.FuelEvent
	Site      string
	Equipment string
}

const (
	historyLimit = 20
	eventLimit   = 100
)

// FetchData retrieves everything the monitor displays. siteIDs scopes the
// events as in db.FuelEventFilter.
func FetchData(src Source, siteIDs []string) RefreshDataMsg {
	msg := RefreshDataMsg{Timestamp: time.Now()}

	outbox, err := src.CountOutbox()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.OutboxPending = outbox[models.OutboxPending]
	msg.OutboxError = outbox[models.OutboxError]

	if counts, err := src.CountFuelEventsByStatus(); err == nil {
		msg.EventCounts = counts
	}
	msg.OldestPending, _ = src.OldestPendingAge()
	msg.History, _ = src.RecentDrains(historyLimit)

	events, err := src.ListFuelEvents(db.FuelEventFilter{SiteIDs: siteIDs, Limit: eventLimit})
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Events = resolveNames(src, events)
	return msg
}

func resolveNames(src Source, events []models.FuelEvent) []EventRow {
	sites := make(map[string]string)
	if list, err := src.ListSites(); err == nil {
		for _, s := range list {
			sites[s.ID] = s.Name
		}
	}
	equipment := make(map[string]string)
	if list, err := src.ListEquipment(); err == nil {
		for _, e := range list {
			equipment[e.ID] = e.Name
		}
	}

	rows := make([]EventRow, len(events))
	for i, ev := range events {
		rows[i] = EventRow{Event: ev, Site: orPlaceholder(sites[ev.SiteID]), Equipment: orPlaceholder(equipment[ev.EquipmentID])}
	}
	return rows
}

// filterRows keeps rows whose equipment, site or operator contains query
func filterRows(rows []EventRow, query string) []EventRow {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	var out []EventRow
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.Equipment), query) ||
			strings.Contains(strings.ToLower(r.Site), query) ||
			strings.Contains(strings.ToLower(r.Event.OperatorName), query) {
			out = append(out, r)
		}
	}
	return out
}

func orPlaceholder(s string) string {
	if s == "" {
		return models.Placeholder
	}
	return s
}
