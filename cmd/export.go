package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/export"
	"github.com/marcus/fueltrack/internal/output"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write fuel events to an Excel workbook",
	Long: `Write the fuel events you can see to an .xlsx workbook. Filters match
'fuel list'. Without --xlsx the file is named after today's date.`,
	GroupID: "reports",
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

		now := time.Now()
		opts := readListOptions(cmd)
		events, err := listEvents(database, account, opts, now)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return fmt.Errorf("no fuel events to export")
		}

		sites, err := database.ListSites()
		if err != nil {
			return err
		}
		equipment, err := database.ListEquipment()
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("xlsx")
		if path == "" {
			path = export.FileName(now)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := export.WriteXLSX(f, events, sites, equipment); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}

		output.Success("Exported %d events to %s", len(events), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	addListFlags(exportCmd)
	exportCmd.Flags().StringP("xlsx", "o", "", "Output file")
}
