package cmd

import (
	"context"
	"log/slog"
)

// mutatingCommands lists commands that queue outbox entries and should
// trigger auto-sync.
var mutatingCommands = map[string]bool{
	"add":    true,
	"create": true,
	"update": true,
	"delete": true,
	"retry":  true,
}

// isMutatingCommand checks if the given command name triggers auto-sync.
func isMutatingCommand(name string) bool {
	return mutatingCommands[name]
}

// AutoSyncEnabled returns true if auto-sync is enabled (sync.auto,
// FUEL_SYNC_AUTO). Defaults to true.
func AutoSyncEnabled() bool {
	return currentConfig().Sync.Auto
}

// autoSyncAfterMutation runs one drain pass after a mutating command.
// sync.auto_timeout bounds the connectivity probe only; the push itself is
// bounded by sync.transport_timeout. Errors are logged, not returned.
func autoSyncAfterMutation() {
	if !AutoSyncEnabled() {
		return
	}

	database, err := openDB()
	if err != nil {
		slog.Debug("autosync: open db", "err", err)
		return
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), currentConfig().Sync.AutoTimeout)
	defer cancel()

	conn := probeOnce(ctx)
	if !conn.Online() {
		slog.Debug("autosync: offline, leaving queue for later")
		return
	}

	res, err := newEngine(database, conn).SyncNow(context.WithoutCancel(ctx))
	if err != nil {
		slog.Debug("autosync: drain", "err", err)
		return
	}
	if res.Skipped {
		slog.Debug("autosync: skipped", "reason", res.SkipReason)
		return
	}
	slog.Debug("autosync: pushed", "entries", res.Pushed, "failed", res.Failed)
}
