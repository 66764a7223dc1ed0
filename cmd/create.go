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

// defaultFuelType is used when neither --fuel nor the equipment names one
const defaultFuelType = "Diesel"

// checkEquipmentSite rejects equipment assigned to a different site
func checkEquipmentSite(eq *models.Equipment, site *models.Site) error {
	if eq.SiteID != "" && eq.SiteID != site.ID {
		return fmt.Errorf("equipment %s belongs to another site, not %s", eq.Name, site.Name)
	}
	return nil
}

// eventInput carries the user-supplied fields of a fuel event
type eventInput struct {
	Site        string
	Equipment   string
	Date        string
	Reading     float64
	Liters      float64
	Fuel        string
	Price       float64
	Operator    string
	Invoice     string
	Requisition string
	Notes       string
}

// newFuelEvent validates input against the registry and the account's
// permissions and returns an event ready to store.
func newFuelEvent(database *db.DB, account *models.Account, in eventInput, now time.Time) (*models.FuelEvent, error) {
	if in.Site == "" {
		return nil, errors.New("site is required (--site)")
	}
	if in.Equipment == "" {
		return nil, errors.New("equipment is required (--equipment)")
	}

	site, err := resolveSite(database, in.Site)
	if err != nil {
		return nil, err
	}
	if site.Status != models.StatusActive {
		return nil, fmt.Errorf("site %s is inactive", site.Name)
	}
	if err := checkSiteAccess(account, site.ID); err != nil {
		return nil, err
	}

	eq, err := resolveEquipment(database, in.Equipment)
	if err != nil {
		return nil, err
	}
	if eq.Status != models.StatusActive {
		return nil, fmt.Errorf("equipment %s is inactive", eq.Name)
	}
	if err := checkEquipmentSite(eq, site); err != nil {
		return nil, err
	}

	date := in.Date
	if date == "" {
		date = "today"
	}
	eventDate, err := dateparse.ParseEventDateFrom(date, now)
	if err != nil {
		return nil, err
	}

	if in.Liters <= 0 {
		return nil, errors.New("liters must be greater than zero (--liters)")
	}
	if in.Reading < 0 {
		return nil, errors.New("reading cannot be negative")
	}

	fuel := strings.TrimSpace(in.Fuel)
	if fuel == "" {
		fuel = eq.DefaultFuelType
	}
	if fuel == "" {
		fuel = defaultFuelType
	}
	operator := strings.TrimSpace(in.Operator)
	if operator == "" {
		operator = account.Name
	}

	return &models.FuelEvent{
		SiteID:            site.ID,
		EquipmentID:       eq.ID,
		EventDate:         eventDate,
		CurrentReading:    in.Reading,
		Liters:            in.Liters,
		FuelType:          fuel,
		PricePerLiter:     in.Price,
		OperatorName:      operator,
		InvoiceNumber:     in.Invoice,
		RequisitionNumber: in.Requisition,
		Notes:             in.Notes,
	}, nil
}

// readEventInput collects event flags shared by add and update
func readEventInput(cmd *cobra.Command) eventInput {
	var in eventInput
	in.Site, _ = cmd.Flags().GetString("site")
	in.Equipment, _ = cmd.Flags().GetString("equipment")
	in.Date, _ = cmd.Flags().GetString("date")
	in.Reading, _ = cmd.Flags().GetFloat64("reading")
	in.Liters, _ = cmd.Flags().GetFloat64("liters")
	in.Fuel, _ = cmd.Flags().GetString("fuel")
	in.Price, _ = cmd.Flags().GetFloat64("price")
	in.Operator, _ = cmd.Flags().GetString("operator")
	in.Invoice, _ = cmd.Flags().GetString("invoice")
	in.Requisition, _ = cmd.Flags().GetString("requisition")
	in.Notes, _ = cmd.Flags().GetString("notes")
	return in
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("site", "s", "", "Site name or id")
	cmd.Flags().StringP("equipment", "e", "", "Equipment name or id")
	cmd.Flags().StringP("date", "d", "", "Event date: YYYY-MM-DD, DD/MM/YYYY, today, yesterday, -3d, 'last friday'")
	cmd.Flags().Float64P("reading", "r", 0, "Odometer or hour meter reading")
	cmd.Flags().Float64P("liters", "l", 0, "Liters dispensed")
	cmd.Flags().StringP("fuel", "f", "", "Fuel type (defaults to the equipment's, then Diesel)")
	cmd.Flags().Float64P("price", "p", 0, "Price per liter")
	cmd.Flags().StringP("operator", "o", "", "Operator name (defaults to your account name)")
	cmd.Flags().String("invoice", "", "Invoice number")
	cmd.Flags().String("requisition", "", "Requisition number")
	cmd.Flags().StringP("notes", "n", "", "Free-text notes")
}

var createCmd = &cobra.Command{
	Use:     "add",
	Aliases: []string{"create", "new"},
	Short:   "Record a refueling",
	Long: `Record a refueling. The previous reading, consumption and cost are
derived from the equipment's earlier events, and the record is queued for
sync.`,
	Example: `  fuel add --site "North Quarry" --equipment "Loader 7" --reading 10250 --liters 80 --price 6.19
  fuel add -s quarry -e truck-12 -d yesterday -r 48211 -l 120 -p 6.05 --invoice 5531`,
	GroupID: "core",
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

		ev, err := newFuelEvent(database, account, readEventInput(cmd), time.Now())
		if err != nil {
			return err
		}
		if err := database.CreateFuelEvent(ev, account.Email); err != nil {
			return fmt.Errorf("record fuel event: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(ev)
		}
		eq, _ := database.GetEquipment(ev.EquipmentID)
		output.Success("CREATED %s", output.ShortID(ev.ID))
		fmt.Printf("Consumption: %s  Total: %s\n",
			output.FormatConsumption(ev.AverageConsumption, eq), output.FormatMoney(ev.TotalCost))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	addEventFlags(createCmd)
	createCmd.Flags().Bool("json", false, "JSON output")
}
