package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/config"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
	fuelsync "github.com/marcus/fueltrack/internal/sync"
	"github.com/marcus/fueltrack/internal/transport"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued changes to the spreadsheet now",
	Long: `Run one sync pass: queued fuel events are appended to the configured
spreadsheet. Without a network connection or a configured transport the
queue is left untouched.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAccount(database); err != nil {
			return err
		}

		ctx := cmd.Context()
		conn := probeOnce(ctx)
		res, err := newEngine(database, conn).SyncNow(ctx)
		if err != nil {
			if res.Failed > 0 || res.Escalated > 0 {
				fmt.Println(formatDrainResult(res))
			}
			return fmt.Errorf("sync: %w", err)
		}
		if res.Skipped {
			output.Info("%s", formatDrainResult(res))
			return nil
		}
		fmt.Println(formatDrainResult(res))
		return nil
	},
}

// formatDrainResult summarizes a pass on one line
func formatDrainResult(res fuelsync.DrainResult) string {
	if res.Skipped {
		switch res.SkipReason {
		case "offline":
			return "Offline: changes stay queued until the connection returns."
		case "unconfigured":
			return "No remote configured: set a webhook with 'fuel config set webhook-url' or run 'fuel auth google'."
		case "empty":
			return "Nothing to sync."
		}
		return "Skipped: " + res.SkipReason
	}

	parts := []string{fmt.Sprintf("Pushed %d", res.Pushed)}
	if res.Dropped > 0 {
		parts = append(parts, fmt.Sprintf("dropped %d", res.Dropped))
	}
	if res.Failed > 0 {
		parts = append(parts, fmt.Sprintf("failed %d", res.Failed))
	}
	if res.Escalated > 0 {
		parts = append(parts, fmt.Sprintf("%d moved to errors", res.Escalated))
	}
	line := strings.Join(parts, ", ")
	if res.CollectionID != "" {
		line += "\nCreated spreadsheet " + res.CollectionID
	}
	return line
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue, connectivity and recent sync passes",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		rc, err := transport.Resolve(database)
		if err != nil {
			return err
		}
		outbox, err := database.CountOutbox()
		if err != nil {
			return err
		}
		counts, err := database.CountFuelEventsByStatus()
		if err != nil {
			return err
		}
		oldest, _ := database.OldestPendingAge()
		drains, _ := database.RecentDrains(5)

		online := "online"
		if !probeOnce(cmd.Context()).Online() {
			online = "offline"
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(map[string]any{
				"transport":      rc.String(),
				"connectivity":   online,
				"outbox":         outbox,
				"events":         counts,
				"oldest_pending": oldest.String(),
				"recent":         drains,
			})
		}

		fmt.Printf("Transport:    %s\n", rc)
		fmt.Printf("Connectivity: %s\n", online)
		fmt.Printf("Queue:        %d pending, %d error", outbox[models.OutboxPending], outbox[models.OutboxError])
		if oldest > 0 {
			fmt.Printf(" (oldest %s)", oldest.Round(time.Second))
		}
		fmt.Println()
		fmt.Printf("Events:       %d pending, %d synced, %d error\n",
			counts[models.SyncPending], counts[models.SyncSynced], counts[models.SyncError])

		if ws, err := config.Load(getDataDir()); err == nil && ws.LastImportAt != nil {
			fmt.Printf("Last import:  %s\n", output.FormatTimeAgo(*ws.LastImportAt))
		}

		if len(drains) > 0 {
			fmt.Println()
			fmt.Println(output.SectionHeader("Recent passes"))
			for _, p := range drains {
				fmt.Println(formatDrainPass(p))
			}
		}
		return nil
	},
}

func formatDrainPass(p models.DrainPass) string {
	line := fmt.Sprintf("  %s  %-9s pushed=%d dropped=%d failed=%d escalated=%d  %s",
		p.StartedAt.Local().Format("2006-01-02 15:04:05"), p.Trigger,
		p.Pushed, p.Dropped, p.Failed, p.Escalated, p.Duration.Round(time.Millisecond))
	if p.Error != "" {
		line += "  " + output.Subtle(p.Error)
	}
	return line
}

var syncImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Fetch remote rows that are missing locally",
	Long: `Download every row from the spreadsheet and insert those whose id is not
stored locally. Local records are never overwritten. Operators only receive
rows for their permitted sites.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		account, err := requireAccount(database)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		conn := probeOnce(ctx)
		if !conn.Online() {
			return fmt.Errorf("import needs a network connection")
		}

		res, err := newEngine(database, conn).ImportRemote(ctx, account)
		if err != nil {
			return err
		}
		if err := config.SetLastImport(getDataDir(), time.Now()); err != nil {
			slog.Warn("record import time", "err", err)
		}

		output.Success("Imported %d new events", res.Imported)
		fmt.Printf("Fetched %d rows, %d visible, %d unreadable\n", res.Fetched, res.Visible, res.Skipped)
		return nil
	},
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append every visible event to the spreadsheet",
	Long: `Send every event you can see to the spreadsheet regardless of its sync
status. The queue is not touched, so rows may be duplicated remotely.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		account, err := requireAccount(database)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		n, err := newEngine(database, probeOnce(ctx)).Export(ctx, account)
		if err != nil {
			return err
		}
		output.Success("Exported %d events", n)
		return nil
	},
}

var syncErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List queue entries that exceeded the retry limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := database.ListErroredOutbox()
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println("No failed entries")
			return nil
		}
		for i := range entries {
			fmt.Println(output.FormatOutboxEntry(&entries[i]))
		}
		fmt.Println()
		fmt.Println(output.Subtle("'fuel sync retry' queues them again; 'fuel sync purge' discards them."))
		return nil
	},
}

var syncRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Queue failed entries again with a fresh retry budget",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		n, err := database.RequeueErrored()
		if err != nil {
			return err
		}
		output.Success("Requeued %d entries", n)
		return nil
	},
}

var syncPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Discard failed entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("purge discards failed entries permanently; pass --yes to confirm")
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		n, err := database.PurgeErrored()
		if err != nil {
			return err
		}
		output.Success("Purged %d entries", n)
		return nil
	},
}

var syncDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync continuously until interrupted",
	Long: `Run the sync engine in the foreground: a pass every sync.interval, after
local changes made through this process, and whenever connectivity returns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		mon := newMonitor()
		mon.Probe(ctx)
		engine := newEngine(database, mon)
		database.SetEnqueueHook(engine.Notify)
		defer database.SetEnqueueHook(nil)

		c := currentConfig()
		slog.Info("sync daemon started", "interval", c.Sync.Interval, "probe", c.Connectivity.ProbeURL)

		// First pass right away rather than after one interval
		runForeground(ctx, engine)

		engine.Start(ctx)
		go mon.Run(ctx, engine.Reconnected)

		<-ctx.Done()
		engine.Stop()
		slog.Info("sync daemon stopped")
		return nil
	},
}

func runForeground(ctx context.Context, engine *fuelsync.Engine) {
	res, err := engine.SyncNow(ctx)
	if err != nil {
		slog.Error("initial sync pass", "err", err)
		return
	}
	slog.Info("initial sync pass", "result", formatDrainResult(res))
}

func init() {
	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncImportCmd)
	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncErrorsCmd)
	syncCmd.AddCommand(syncRetryCmd)
	syncCmd.AddCommand(syncPurgeCmd)
	syncCmd.AddCommand(syncDaemonCmd)
	rootCmd.AddCommand(syncCmd)

	syncStatusCmd.Flags().Bool("json", false, "JSON output")
	syncErrorsCmd.Flags().Bool("json", false, "JSON output")
	syncPurgeCmd.Flags().Bool("yes", false, "Confirm discarding failed entries")
}
