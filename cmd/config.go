package cmd

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/output"
	"github.com/marcus/fueltrack/internal/syncconfig"
)

// storeSettings maps the remote keys kept in the store's settings table
var storeSettings = map[string]string{
	"spreadsheet-id": db.SettingSpreadsheetID,
	"webhook-url":    db.SettingWebhookURL,
}

// storeKeys lists store-backed keys in display order
var storeKeys = []string{"spreadsheet-id", "webhook-url"}

func isStoreKey(key string) bool {
	_, ok := storeSettings[key]
	return ok
}

// validateSetting checks a value before it is stored
func validateSetting(key, value string) error {
	if key != "webhook-url" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid webhook url %q (want http:// or https://)", value)
	}
	return nil
}

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change configuration",
	GroupID: "system",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set spreadsheet-id or webhook-url",
	Long: `Set a remote setting stored with the local data.

Process settings (sync.*, google.*, log.*) come from fuel.yaml or FUEL_*
environment variables and cannot be set here.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !isStoreKey(key) {
			return fmt.Errorf("unknown key %q (settable: %v)", key, storeKeys)
		}
		if err := validateSetting(key, value); err != nil {
			return err
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		if err := database.SetSetting(storeSettings[key], value); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
		output.Success("%s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Clear spreadsheet-id or webhook-url",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !isStoreKey(key) {
			return fmt.Errorf("unknown key %q (settable: %v)", key, storeKeys)
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		if err := database.ClearSetting(storeSettings[key]); err != nil {
			return fmt.Errorf("unset %s: %w", key, err)
		}
		output.Success("%s cleared", key)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show configuration values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := currentConfig()

		if len(args) == 1 {
			key := args[0]
			if !isStoreKey(key) {
				val, err := c.Get(key)
				if err != nil {
					return err
				}
				fmt.Println(val)
				return nil
			}
			database, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			val, err := database.GetSetting(storeSettings[key])
			if err != nil {
				return err
			}
			fmt.Println(val)
			return nil
		}

		for _, k := range syncconfig.Keys() {
			val, _ := c.Get(k)
			fmt.Printf("%-26s %s\n", k, val)
		}
		if database, err := openDB(); err == nil {
			defer database.Close()
			for _, k := range storeKeys {
				val, _ := database.GetSetting(storeSettings[k])
				fmt.Printf("%-26s %s\n", k, val)
			}
		}
		if c.File != "" {
			fmt.Println(output.Subtle("config file: " + c.File))
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)

	configSetCmd.ValidArgs = slices.Clone(storeKeys)
}
