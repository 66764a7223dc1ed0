package cmd

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/tui/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of sync state",
	Long: `Launch a live-updating dashboard showing:
- Status: connectivity, outbox depth and event sync counts
- History: recent sync passes
- Events: the latest fuel events you can see

The sync engine runs in the background while the dashboard is open.

Key bindings:
  Tab/Shift+Tab  Switch panels
  1/2/3          Jump to panel
  j/k            Scroll
  /              Filter events
  s              Sync now
  i              Import remote rows
  r              Force refresh
  ?              Toggle help
  q              Quit`,
	GroupID: "sync",
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

		interval, _ := cmd.Flags().GetDuration("interval")
		if interval < 500*time.Millisecond {
			interval = 2 * time.Second
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		mon := newMonitor()
		mon.Probe(ctx)
		engine := newEngine(database, mon)
		database.SetEnqueueHook(engine.Notify)
		defer database.SetEnqueueHook(nil)
		engine.Start(ctx)
		defer engine.Stop()
		go mon.Run(ctx, engine.Reconnected)

		actions := monitor.Actions{
			Online: mon.Online,
			Sync: func(ctx context.Context) (string, error) {
				res, err := engine.SyncNow(ctx)
				if err != nil {
					return "", err
				}
				return formatDrainResult(res), nil
			},
			Import: func(ctx context.Context) (string, error) {
				res, err := engine.ImportRemote(ctx, account)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("Imported %d of %d rows", res.Imported, res.Fetched), nil
			},
		}

		model := monitor.NewModel(database, siteScope(account), actions, interval)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running monitor: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval")
}
