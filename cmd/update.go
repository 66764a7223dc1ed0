package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/dateparse"
	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

// applyEventChanges copies the flags the user set onto ev. Only flags in
// changed are applied.
func applyEventChanges(database *db.DB, account *models.Account, ev *models.FuelEvent, in eventInput, changed func(string) bool, now time.Time) error {
	if changed("site") {
		site, err := resolveSite(database, in.Site)
		if err != nil {
			return err
		}
		if site.Status != models.StatusActive {
			return fmt.Errorf("site %s is inactive", site.Name)
		}
		if err := checkSiteAccess(account, site.ID); err != nil {
			return err
		}
		ev.SiteID = site.ID
	}
	if changed("equipment") {
		eq, err := resolveEquipment(database, in.Equipment)
		if err != nil {
			return err
		}
		if eq.Status != models.StatusActive {
			return fmt.Errorf("equipment %s is inactive", eq.Name)
		}
		ev.EquipmentID = eq.ID
	}
	// A deleted site or equipment has nothing left to check against.
	if changed("site") || changed("equipment") {
		site, siteErr := database.GetSite(ev.SiteID)
		eq, eqErr := database.GetEquipment(ev.EquipmentID)
		if siteErr == nil && eqErr == nil {
			if err := checkEquipmentSite(eq, site); err != nil {
				return err
			}
		}
	}
	if changed("date") {
		d, err := dateparse.ParseEventDateFrom(in.Date, now)
		if err != nil {
			return err
		}
		ev.EventDate = d
	}
	if changed("reading") {
		if in.Reading < 0 {
			return errors.New("reading cannot be negative")
		}
		ev.CurrentReading = in.Reading
	}
	if changed("liters") {
		if in.Liters <= 0 {
			return errors.New("liters must be greater than zero")
		}
		ev.Liters = in.Liters
	}
	if changed("fuel") {
		ev.FuelType = strings.TrimSpace(in.Fuel)
	}
	if changed("price") {
		ev.PricePerLiter = in.Price
	}
	if changed("operator") {
		ev.OperatorName = strings.TrimSpace(in.Operator)
	}
	if changed("invoice") {
		ev.InvoiceNumber = in.Invoice
	}
	if changed("requisition") {
		ev.RequisitionNumber = in.Requisition
	}
	if changed("notes") {
		ev.Notes = in.Notes
	}
	return nil
}

var updateCmd = &cobra.Command{
	Use:     "update <event-id>",
	Aliases: []string{"edit"},
	Short:   "Change a fuel event",
	Long: `Change the given fields of a fuel event. Derived metrics are recomputed and
the event is queued for sync again.`,
	GroupID: "core",
	Args:    cobra.ExactArgs(1),
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
		ev, err := resolveEvent(database, args[0])
		if err != nil {
			return err
		}
		if err := checkSiteAccess(account, ev.SiteID); err != nil {
			return err
		}

		changed := cmd.Flags().Changed
		if err := applyEventChanges(database, account, ev, readEventInput(cmd), changed, time.Now()); err != nil {
			return err
		}
		if err := database.UpdateFuelEvent(ev, account.Email); err != nil {
			return fmt.Errorf("update fuel event: %w", err)
		}
		output.Success("UPDATED %s", output.ShortID(ev.ID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
	addEventFlags(updateCmd)
}
