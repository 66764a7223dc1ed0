package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

var siteCmd = &cobra.Command{
	Use:     "site",
	Aliases: []string{"sites", "obra"},
	Short:   "Manage work sites",
	GroupID: "registry",
}

// parseActiveStatus accepts active/inactive in any case
func parseActiveStatus(s string) (models.ActiveStatus, error) {
	st := models.ActiveStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !models.IsValidActiveStatus(st) {
		return "", fmt.Errorf("invalid status %q (valid: active, inactive)", s)
	}
	return st, nil
}

var siteAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a site",
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

		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("name is required")
		}
		location, _ := cmd.Flags().GetString("location")
		site := &models.Site{Name: name, Location: location}
		if err := database.CreateSite(site); err != nil {
			return err
		}
		output.Success("CREATED site %s %s", output.ShortID(site.ID), site.Name)
		return nil
	},
}

var siteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sites visible to you",
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

		sites, err := database.ListSites()
		if err != nil {
			return err
		}
		showAll, _ := cmd.Flags().GetBool("all")
		sites = filterSites(sites, account, showAll)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(sites)
		}
		if len(sites) == 0 {
			fmt.Println("No sites")
			return nil
		}
		for i := range sites {
			fmt.Println(formatSite(&sites[i]))
		}
		return nil
	},
}

// filterSites keeps sites the account may see; inactive ones only with all
func filterSites(sites []models.Site, a *models.Account, all bool) []models.Site {
	var out []models.Site
	for _, s := range sites {
		if !a.CanAccessSite(s.ID) {
			continue
		}
		if !all && s.Status != models.StatusActive {
			continue
		}
		out = append(out, s)
	}
	return out
}

func formatSite(s *models.Site) string {
	line := fmt.Sprintf("%s  %s", output.Title(output.ShortID(s.ID)), output.Cell(s.Name, 24))
	if s.Location != "" {
		line += "  " + output.Subtle(s.Location)
	}
	if s.Status != models.StatusActive {
		line += "  " + output.Subtle("["+string(s.Status)+"]")
	}
	return line
}

var siteUpdateCmd = &cobra.Command{
	Use:   "update <site>",
	Short: "Rename, relocate or deactivate a site",
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
		site, err := resolveSite(database, args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("name") {
			site.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("location") {
			site.Location, _ = cmd.Flags().GetString("location")
		}
		if cmd.Flags().Changed("status") {
			s, _ := cmd.Flags().GetString("status")
			if site.Status, err = parseActiveStatus(s); err != nil {
				return err
			}
		}
		if strings.TrimSpace(site.Name) == "" {
			return fmt.Errorf("name is required")
		}

		if err := database.UpdateSite(site); err != nil {
			return err
		}
		output.Success("UPDATED site %s %s", output.ShortID(site.ID), site.Name)
		return nil
	},
}

var siteDeleteCmd = &cobra.Command{
	Use:   "delete <site>",
	Short: "Delete a site (its fuel events are kept)",
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
		site, err := resolveSite(database, args[0])
		if err != nil {
			return err
		}
		if err := database.DeleteSite(site.ID); err != nil {
			return err
		}
		output.Success("DELETED site %s %s", output.ShortID(site.ID), site.Name)
		return nil
	},
}

func init() {
	siteCmd.AddCommand(siteAddCmd)
	siteCmd.AddCommand(siteListCmd)
	siteCmd.AddCommand(siteUpdateCmd)
	siteCmd.AddCommand(siteDeleteCmd)
	rootCmd.AddCommand(siteCmd)

	siteAddCmd.Flags().StringP("location", "l", "", "Address or description")

	siteListCmd.Flags().BoolP("all", "a", false, "Include inactive sites")
	siteListCmd.Flags().Bool("json", false, "JSON output")

	siteUpdateCmd.Flags().String("name", "", "New name")
	siteUpdateCmd.Flags().StringP("location", "l", "", "New location")
	siteUpdateCmd.Flags().String("status", "", "active or inactive")
}
