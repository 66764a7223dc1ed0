package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/dateparse"
	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

// registry resolves site and equipment ids for display
type registry struct {
	sites     map[string]*models.Site
	equipment map[string]*models.Equipment
}

func loadRegistry(database *db.DB) (*registry, error) {
	sites, err := database.ListSites()
	if err != nil {
		return nil, err
	}
	equipment, err := database.ListEquipment()
	if err != nil {
		return nil, err
	}
	r := &registry{
		sites:     make(map[string]*models.Site, len(sites)),
		equipment: make(map[string]*models.Equipment, len(equipment)),
	}
	for i := range sites {
		r.sites[sites[i].ID] = &sites[i]
	}
	for i := range equipment {
		r.equipment[equipment[i].ID] = &equipment[i]
	}
	return r, nil
}

// listOptions narrows a fuel event listing
type listOptions struct {
	Site      string
	Equipment string
	Status    string
	Since     string
	Until     string
	Limit     int
}

// listEvents returns the events visible to account that match opts
func listEvents(database *db.DB, account *models.Account, opts listOptions, now time.Time) ([]models.FuelEvent, error) {
	filter := db.FuelEventFilter{SiteIDs: siteScope(account)}

	if opts.Site != "" {
		site, err := resolveSite(database, opts.Site)
		if err != nil {
			return nil, err
		}
		if err := checkSiteAccess(account, site.ID); err != nil {
			return nil, err
		}
		filter.SiteIDs = []string{site.ID}
	}
	if opts.Equipment != "" {
		eq, err := resolveEquipment(database, opts.Equipment)
		if err != nil {
			return nil, err
		}
		filter.EquipmentID = eq.ID
	}
	if opts.Status != "" {
		st := models.SyncStatus(strings.ToUpper(opts.Status))
		if !slices.Contains([]models.SyncStatus{models.SyncPending, models.SyncSynced, models.SyncError}, st) {
			return nil, fmt.Errorf("invalid status %q (valid: pending, synced, error)", opts.Status)
		}
		filter.SyncStatus = st
	}

	var since, until time.Time
	var err error
	if opts.Since != "" {
		if since, err = dateparse.ParseEventDateFrom(opts.Since, now); err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
	}
	if opts.Until != "" {
		if until, err = dateparse.ParseEventDateFrom(opts.Until, now); err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
	}
	// The limit applies after the date range
	if since.IsZero() && until.IsZero() {
		filter.Limit = opts.Limit
	}

	events, err := database.ListFuelEvents(filter)
	if err != nil {
		return nil, err
	}
	if since.IsZero() && until.IsZero() {
		return events, nil
	}

	out := events[:0]
	for _, ev := range events {
		if !since.IsZero() && ev.EventDate.Before(since) {
			continue
		}
		if !until.IsZero() && ev.EventDate.After(until) {
			continue
		}
		out = append(out, ev)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func readListOptions(cmd *cobra.Command) listOptions {
	var opts listOptions
	opts.Site, _ = cmd.Flags().GetString("site")
	opts.Equipment, _ = cmd.Flags().GetString("equipment")
	opts.Status, _ = cmd.Flags().GetString("status")
	opts.Since, _ = cmd.Flags().GetString("since")
	opts.Until, _ = cmd.Flags().GetString("until")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	return opts
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List fuel events, newest first",
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

		events, err := listEvents(database, account, readListOptions(cmd), time.Now())
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(events)
		}
		if len(events) == 0 {
			fmt.Println("No fuel events")
			return nil
		}

		reg, err := loadRegistry(database)
		if err != nil {
			return err
		}
		long, _ := cmd.Flags().GetBool("long")
		for i := range events {
			ev := &events[i]
			site, eq := reg.sites[ev.SiteID], reg.equipment[ev.EquipmentID]
			if long {
				fmt.Println(output.FormatEventLong(ev, site, eq))
				continue
			}
			fmt.Println(output.FormatEventShort(ev, site, eq))
		}
		return nil
	},
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("site", "s", "", "Only this site")
	cmd.Flags().StringP("equipment", "e", "", "Only this equipment")
	cmd.Flags().String("since", "", "Events on or after this date")
	cmd.Flags().String("until", "", "Events on or before this date")
}

func init() {
	rootCmd.AddCommand(listCmd)

	addListFlags(listCmd)
	listCmd.Flags().String("status", "", "Sync status: pending, synced, error")
	listCmd.Flags().IntP("limit", "n", 50, "Maximum events (0 for all)")
	listCmd.Flags().Bool("long", false, "Show every field")
	listCmd.Flags().Bool("json", false, "JSON output")
}
