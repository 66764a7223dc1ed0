package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

var showCmd = &cobra.Command{
	Use:     "show <event-id> [event-id...]",
	Aliases: []string{"view"},
	Short:   "Show fuel event details",
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
		reg, err := loadRegistry(database)
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		var found []*models.FuelEvent
		for _, ref := range args {
			ev, err := resolveEvent(database, ref)
			if err != nil {
				return err
			}
			if err := checkSiteAccess(account, ev.SiteID); err != nil {
				return err
			}
			found = append(found, ev)
		}

		if jsonOutput {
			if len(found) == 1 {
				return output.JSON(found[0])
			}
			return output.JSON(found)
		}
		for i, ev := range found {
			if i > 0 {
				fmt.Println()
			}
			fmt.Print(output.FormatEventLong(ev, reg.sites[ev.SiteID], reg.equipment[ev.EquipmentID]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().Bool("json", false, "JSON output")
}
