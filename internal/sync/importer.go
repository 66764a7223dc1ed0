package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/transport"
)

// ImportResult summarizes an import.
type ImportResult struct {
	Fetched  int // rows returned by the remote
	Visible  int // rows left after the role filter
	Skipped  int // rows that could not be converted
	Imported int // rows inserted locally
}

// ImportRemote pulls every remote row and inserts the ones the store does
// not already hold. Local rows always win. Operators only receive rows for
// their permitted sites.
func (e *Engine) ImportRemote(ctx context.Context, account *models.Account) (ImportResult, error) {
	var res ImportResult

	tr, err := e.dial(ctx)
	if err != nil {
		return res, err
	}
	records, err := tr.Pull(ctx)
	if err != nil {
		return res, fmt.Errorf("pull: %w", err)
	}
	res.Fetched = len(records)

	events := make([]models.FuelEvent, 0, len(records))
	for _, r := range records {
		if account != nil && !account.IsAdmin() && !account.CanAccessSite(r.SiteID) {
			continue
		}
		res.Visible++

		ev, err := r.FuelEvent()
		if err != nil {
			slog.Debug("import: skip row", "id", r.ID, "err", err)
			res.Skipped++
			continue
		}
		events = append(events, ev)
	}

	n, err := e.store.ImportFuelEvents(events)
	if err != nil {
		return res, fmt.Errorf("import: %w", err)
	}
	res.Imported = n
	slog.Info("import", "fetched", res.Fetched, "visible", res.Visible, "imported", n)
	return res, nil
}

// Export pushes every event visible to account, bypassing the outbox. Sync
// statuses and queue entries are left untouched. It returns the number of
// records sent.
func (e *Engine) Export(ctx context.Context, account *models.Account) (int, error) {
	filter := db.FuelEventFilter{}
	if account != nil && !(account.IsAdmin() && len(account.PermittedSites) == 0) {
		filter.SiteIDs = append([]string{}, account.PermittedSites...)
	}
	events, err := e.store.ListFuelEvents(filter)
	if err != nil {
		return 0, fmt.Errorf("list events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	sites := make(map[string]*models.Site)
	equipment := make(map[string]*models.Equipment)
	syncedAt := e.now()
	records := make([]transport.Record, 0, len(events))
	// Oldest first so the sheet reads chronologically.
	for i := len(events) - 1; i >= 0; i-- {
		ev := &events[i]
		site, ok := sites[ev.SiteID]
		if !ok {
			if site, err = lookup(e.store.GetSite, ev.SiteID); err != nil {
				return 0, err
			}
			sites[ev.SiteID] = site
		}
		eq, ok := equipment[ev.EquipmentID]
		if !ok {
			if eq, err = lookup(e.store.GetEquipment, ev.EquipmentID); err != nil {
				return 0, err
			}
			equipment[ev.EquipmentID] = eq
		}
		records = append(records, transport.NewRecord(ev, site, eq, syncedAt))
	}

	tr, err := e.dial(ctx)
	if err != nil {
		return 0, err
	}
	pushRes, err := tr.Push(ctx, records)
	if pushRes.CollectionID != "" {
		if serr := e.store.SetSetting(db.SettingSpreadsheetID, pushRes.CollectionID); serr != nil {
			slog.Error("persist spreadsheet id", "id", pushRes.CollectionID, "err", serr)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("push %d records: %w", len(records), err)
	}
	return len(records), nil
}

// dial resolves the configured transport, failing when none is set.
func (e *Engine) dial(ctx context.Context) (transport.Transport, error) {
	cfg, err := transport.Resolve(e.store)
	if err != nil {
		return nil, err
	}
	if cfg.Kind == transport.KindUnconfigured {
		return nil, transport.ErrNotConfigured
	}
	return e.dialer.Dial(ctx, cfg)
}
