package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/marcus/fueltrack/internal/connectivity"
	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/session"
	fuelsync "github.com/marcus/fueltrack/internal/sync"
	"github.com/marcus/fueltrack/internal/syncconfig"
	"github.com/marcus/fueltrack/internal/transport/remote"
	"github.com/marcus/fueltrack/internal/transport/sheets"
)

// minRefLen is the shortest id prefix accepted as a reference
const minRefLen = 4

// currentConfig returns the loaded configuration, falling back to
// defaults when the root pre-run did not execute (tests).
func currentConfig() *syncconfig.Config {
	if cfg == nil {
		loaded, err := syncconfig.Load()
		if err != nil {
			return &syncconfig.Config{DataDir: ".fuel"}
		}
		cfg = loaded
	}
	return cfg
}

// openDB opens the store in the data directory
func openDB() (*db.DB, error) {
	return db.Open(getDataDir(), db.WithDriver(currentConfig().Storage.Driver))
}

// requireAccount returns the logged-in account
func requireAccount(database *db.DB) (*models.Account, error) {
	return session.Current(database, getDataDir())
}

// requireAdmin returns the logged-in account if it is an ADMIN
func requireAdmin(database *db.DB) (*models.Account, error) {
	return session.RequireAdmin(database, getDataDir())
}

// siteScope turns an account into a FuelEventFilter site list: nil for
// unrestricted admins, the permitted sites otherwise.
func siteScope(a *models.Account) []string {
	if a.IsAdmin() && len(a.PermittedSites) == 0 {
		return nil
	}
	return append([]string{}, a.PermittedSites...)
}

// newDialer builds the remote dialer. Refreshed OAuth tokens are written
// back to the settings table.
func newDialer(database *db.DB) *remote.Dialer {
	c := currentConfig()
	return &remote.Dialer{
		Timeout:       c.Sync.TransportTimeout,
		RatePerMinute: c.Sync.RatePerMinute,
		Title:         c.Google.SpreadsheetTitle,
		OAuth:         c.OAuthConfig(sheets.Scopes...),
		SaveToken: func(tok *oauth2.Token) {
			raw, err := sheets.EncodeToken(tok)
			if err != nil {
				slog.Error("encode refreshed token", "err", err)
				return
			}
			if err := database.SetSetting(db.SettingOAuthToken, raw); err != nil {
				slog.Error("save refreshed token", "err", err)
			}
		},
	}
}

// newEngine wires the sync engine to the store and the remote dialer
func newEngine(database *db.DB, conn fuelsync.Connectivity) *fuelsync.Engine {
	c := currentConfig()
	return fuelsync.New(database, newDialer(database), conn, fuelsync.Options{
		Interval:   c.Sync.Interval,
		MaxRetries: c.Sync.MaxRetries,
	})
}

// newMonitor returns a connectivity monitor from configuration
func newMonitor() *connectivity.Monitor {
	c := currentConfig()
	return connectivity.NewMonitor(c.Connectivity.ProbeURL, c.Connectivity.Interval)
}

// probeOnce checks reachability once and returns the monitor holding
// the result.
func probeOnce(ctx context.Context) *connectivity.Monitor {
	m := newMonitor()
	m.Probe(ctx)
	return m
}

// resolveSite finds a site by id, id prefix or case-insensitive name
func resolveSite(database *db.DB, ref string) (*models.Site, error) {
	if s, err := database.GetSite(ref); err == nil {
		return s, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	sites, err := database.ListSites()
	if err != nil {
		return nil, err
	}
	var match []models.Site
	for _, s := range sites {
		if strings.EqualFold(s.Name, ref) || (len(ref) >= minRefLen && strings.HasPrefix(s.ID, ref)) {
			match = append(match, s)
		}
	}
	return pickOne(match, "site", ref)
}

// resolveEquipment finds equipment by id, id prefix or case-insensitive name
func resolveEquipment(database *db.DB, ref string) (*models.Equipment, error) {
	if e, err := database.GetEquipment(ref); err == nil {
		return e, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	list, err := database.ListEquipment()
	if err != nil {
		return nil, err
	}
	var match []models.Equipment
	for _, e := range list {
		if strings.EqualFold(e.Name, ref) || (len(ref) >= minRefLen && strings.HasPrefix(e.ID, ref)) {
			match = append(match, e)
		}
	}
	return pickOne(match, "equipment", ref)
}

// resolveEvent finds a fuel event by id or unique id prefix
func resolveEvent(database *db.DB, ref string) (*models.FuelEvent, error) {
	if ev, err := database.GetFuelEvent(ref); err == nil {
		return ev, nil
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	if len(ref) < minRefLen {
		return nil, fmt.Errorf("fuel event %s: %w", ref, db.ErrNotFound)
	}
	events, err := database.ListFuelEvents(db.FuelEventFilter{})
	if err != nil {
		return nil, err
	}
	var match []models.FuelEvent
	for _, ev := range events {
		if strings.HasPrefix(ev.ID, ref) {
			match = append(match, ev)
		}
	}
	return pickOne(match, "fuel event", ref)
}

func pickOne[T any](match []T, kind, ref string) (*T, error) {
	switch len(match) {
	case 0:
		return nil, fmt.Errorf("%s %q: %w", kind, ref, db.ErrNotFound)
	case 1:
		return &match[0], nil
	}
	return nil, fmt.Errorf("%s %q is ambiguous (%d matches)", kind, ref, len(match))
}

// checkSiteAccess rejects events outside the account's permitted sites
func checkSiteAccess(a *models.Account, siteID string) error {
	if !a.CanAccessSite(siteID) {
		return fmt.Errorf("%s has no access to site %s", a.Email, siteID)
	}
	return nil
}

// splitList parses a comma-separated flag value
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
