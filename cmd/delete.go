package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <event-id> [event-id...]",
	Aliases: []string{"rm"},
	Short:   "Delete fuel events",
	Long: `Delete fuel events locally. Rows already sent to the spreadsheet are not
removed there.`,
	GroupID: "core",
	Args:    cobra.MinimumNArgs(1),
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

		var failed int
		for _, ref := range args {
			ev, err := resolveEvent(database, ref)
			if err != nil {
				output.Error("%v", err)
				failed++
				continue
			}
			if err := checkSiteAccess(account, ev.SiteID); err != nil {
				output.Error("%v", err)
				failed++
				continue
			}
			if err := database.DeleteFuelEvent(ev.ID); err != nil {
				output.Error("delete %s: %v", output.ShortID(ev.ID), err)
				failed++
				continue
			}
			output.Success("DELETED %s", output.ShortID(ev.ID))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d deletions failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
