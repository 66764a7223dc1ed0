package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

var equipmentCmd = &cobra.Command{
	Use:     "equipment",
	Aliases: []string{"eq", "equipamento"},
	Short:   "Manage vehicles and machines",
	GroupID: "registry",
}

// parseMeasurement accepts km/distance or hours
func parseMeasurement(s string) (models.MeasurementKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "km", "distance", "":
		return models.MeasureDistance, nil
	case "h", "hours", "horas":
		return models.MeasureHours, nil
	}
	return "", fmt.Errorf("invalid measurement %q (valid: km, hours)", s)
}

// equipmentInput carries the user-supplied attributes of equipment
type equipmentInput struct {
	Name     string
	Site     string
	Plate    string
	Make     string
	Model    string
	Year     int
	Category string
	Measure  string
	Fuel     string
	Status   string
}

func readEquipmentInput(cmd *cobra.Command) equipmentInput {
	var in equipmentInput
	in.Name, _ = cmd.Flags().GetString("name")
	in.Site, _ = cmd.Flags().GetString("site")
	in.Plate, _ = cmd.Flags().GetString("plate")
	in.Make, _ = cmd.Flags().GetString("make")
	in.Model, _ = cmd.Flags().GetString("model")
	in.Year, _ = cmd.Flags().GetInt("year")
	in.Category, _ = cmd.Flags().GetString("category")
	in.Measure, _ = cmd.Flags().GetString("measure")
	in.Fuel, _ = cmd.Flags().GetString("fuel")
	in.Status, _ = cmd.Flags().GetString("status")
	return in
}

// applyEquipmentChanges copies the attributes named by changed onto eq. An
// empty site detaches the equipment from its site.
func applyEquipmentChanges(database *db.DB, eq *models.Equipment, in equipmentInput, changed func(string) bool) error {
	var err error
	if changed("name") {
		eq.Name = strings.TrimSpace(in.Name)
	}
	if changed("site") {
		eq.SiteID = ""
		if ref := strings.TrimSpace(in.Site); ref != "" {
			site, err := resolveSite(database, ref)
			if err != nil {
				return err
			}
			eq.SiteID = site.ID
		}
	}
	if changed("plate") {
		eq.Plate = strings.TrimSpace(in.Plate)
	}
	if changed("make") {
		eq.Make = strings.TrimSpace(in.Make)
	}
	if changed("model") {
		eq.Model = strings.TrimSpace(in.Model)
	}
	if changed("year") {
		if in.Year < 0 {
			return fmt.Errorf("invalid year %d", in.Year)
		}
		eq.Year = in.Year
	}
	if changed("category") {
		eq.Category = in.Category
	}
	if changed("measure") {
		if eq.Measurement, err = parseMeasurement(in.Measure); err != nil {
			return err
		}
	}
	if changed("fuel") {
		eq.DefaultFuelType = strings.TrimSpace(in.Fuel)
	}
	if changed("status") {
		if eq.Status, err = parseActiveStatus(in.Status); err != nil {
			return err
		}
	}
	if eq.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}

var equipmentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register equipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}

		in := readEquipmentInput(cmd)
		in.Name = args[0]
		changed := func(name string) bool { return name == "name" || name == "measure" || cmd.Flags().Changed(name) }
		eq := &models.Equipment{}
		if err := applyEquipmentChanges(database, eq, in, changed); err != nil {
			return err
		}
		if err := database.CreateEquipment(eq); err != nil {
			return err
		}
		output.Success("CREATED equipment %s %s", output.ShortID(eq.ID), eq.Name)
		return nil
	},
}

var equipmentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List equipment",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAccount(database); err != nil {
			return err
		}

		list, err := database.ListEquipment()
		if err != nil {
			return err
		}
		if showAll, _ := cmd.Flags().GetBool("all"); !showAll {
			active := list[:0]
			for _, e := range list {
				if e.Status == models.StatusActive {
					active = append(active, e)
				}
			}
			list = active
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No equipment")
			return nil
		}
		for i := range list {
			fmt.Println(formatEquipment(&list[i]))
		}
		return nil
	},
}

func formatEquipment(e *models.Equipment) string {
	unit := "km"
	if e.Measurement == models.MeasureHours {
		unit = "h"
	}
	line := fmt.Sprintf("%s  %s  %s  %s  %s",
		output.Title(output.ShortID(e.ID)), output.Cell(e.Name, 24), output.Cell(e.Plate, 10), output.Cell(e.Category, 14), unit)
	if e.Status != models.StatusActive {
		line += "  " + output.Subtle("["+string(e.Status)+"]")
	}
	return line
}

var equipmentUpdateCmd = &cobra.Command{
	Use:   "update <equipment>",
	Short: "Change equipment details or deactivate it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		eq, err := resolveEquipment(database, args[0])
		if err != nil {
			return err
		}

		if err := applyEquipmentChanges(database, eq, readEquipmentInput(cmd), cmd.Flags().Changed); err != nil {
			return err
		}

		if err := database.UpdateEquipment(eq); err != nil {
			return err
		}
		output.Success("UPDATED equipment %s %s", output.ShortID(eq.ID), eq.Name)
		return nil
	},
}

var equipmentDeleteCmd = &cobra.Command{
	Use:   "delete <equipment>",
	Short: "Delete equipment (its fuel events are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		eq, err := resolveEquipment(database, args[0])
		if err != nil {
			return err
		}
		if err := database.DeleteEquipment(eq.ID); err != nil {
			return err
		}
		output.Success("DELETED equipment %s %s", output.ShortID(eq.ID), eq.Name)
		return nil
	},
}

func init() {
	equipmentCmd.AddCommand(equipmentAddCmd)
	equipmentCmd.AddCommand(equipmentListCmd)
	equipmentCmd.AddCommand(equipmentUpdateCmd)
	equipmentCmd.AddCommand(equipmentDeleteCmd)
	rootCmd.AddCommand(equipmentCmd)

	for _, c := range []*cobra.Command{equipmentAddCmd, equipmentUpdateCmd} {
		c.Flags().StringP("site", "s", "", "Site the equipment works at (empty for any site)")
		c.Flags().String("plate", "", "License plate or serial number")
		c.Flags().String("make", "", "Manufacturer")
		c.Flags().String("model", "", "Model")
		c.Flags().Int("year", 0, "Model year")
		c.Flags().StringP("fuel", "f", "", "Default fuel type for new events")
	}
	equipmentAddCmd.Flags().StringP("category", "c", "", "Category, e.g. truck or loader")
	equipmentAddCmd.Flags().StringP("measure", "m", "km", "Meter kind: km or hours")

	equipmentListCmd.Flags().BoolP("all", "a", false, "Include inactive equipment")
	equipmentListCmd.Flags().Bool("json", false, "JSON output")

	equipmentUpdateCmd.Flags().String("name", "", "New name")
	equipmentUpdateCmd.Flags().StringP("category", "c", "", "New category")
	equipmentUpdateCmd.Flags().StringP("measure", "m", "", "Meter kind: km or hours")
	equipmentUpdateCmd.Flags().String("status", "", "active or inactive")
}
