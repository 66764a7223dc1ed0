package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/dateparse"
	"github.com/marcus/fueltrack/internal/output"
)

var reportCmd = &cobra.Command{
	Use:     "report",
	Short:   "Summarize consumption and cost per equipment",
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
		equipment, err := database.ListEquipment()
		if err != nil {
			return err
		}

		in := output.ReportInput{Title: "Fuel report", Events: events, Equipment: equipment}
		if opts.Site != "" {
			if site, err := resolveSite(database, opts.Site); err == nil {
				in.Title = "Fuel report: " + site.Name
			}
		}
		// Already validated by listEvents
		if opts.Since != "" {
			in.From, _ = dateparse.ParseEventDateFrom(opts.Since, now)
		}
		if opts.Until != "" {
			in.To, _ = dateparse.ParseEventDateFrom(opts.Until, now)
		}

		md := output.BuildReport(in)
		if raw, _ := cmd.Flags().GetBool("raw"); raw {
			fmt.Print(md)
			return nil
		}
		rendered, err := output.RenderMarkdown(md)
		if err != nil {
			fmt.Print(md)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	addListFlags(reportCmd)
	reportCmd.Flags().Bool("raw", false, "Print markdown without rendering")
}
