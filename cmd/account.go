package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
)

var accountCmd = &cobra.Command{
	Use:     "account",
	Aliases: []string{"accounts", "user"},
	Short:   "Manage local accounts (admin only)",
	GroupID: "registry",
}

func parseRole(s string) (models.Role, error) {
	r := models.Role(strings.ToUpper(strings.TrimSpace(s)))
	if !models.IsValidRole(r) {
		return "", fmt.Errorf("invalid role %q (valid: admin, operator)", s)
	}
	return r, nil
}

// resolveSiteList turns site references into ids
func resolveSiteList(database *db.DB, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		s, err := resolveSite(database, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, s.ID)
	}
	return ids, nil
}

var accountAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Create an account",
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

		email := strings.TrimSpace(args[0])
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" && stdinIsTerminal() {
			if err := promptCredentials(&email, &password); err != nil {
				return err
			}
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}
		if name == "" {
			name = email
		}

		roleStr, _ := cmd.Flags().GetString("role")
		role, err := parseRole(roleStr)
		if err != nil {
			return err
		}
		sitesStr, _ := cmd.Flags().GetString("sites")
		sites, err := resolveSiteList(database, splitList(sitesStr))
		if err != nil {
			return err
		}

		a := &models.Account{Name: name, Email: email, Credential: password, Role: role, PermittedSites: sites}
		if err := database.CreateAccount(a); err != nil {
			return err
		}
		output.Success("CREATED account %s (%s)", a.Email, a.Role)
		return nil
	},
}

var accountListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		if _, err := requireAdmin(database); err != nil {
			return err
		}
		accounts, err := database.ListAccounts()
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(accounts)
		}
		names := siteNames(database)
		for i := range accounts {
			fmt.Print(formatAccount(&accounts[i], names))
			fmt.Println()
		}
		return nil
	},
}

var accountUpdateCmd = &cobra.Command{
	Use:   "update <email>",
	Short: "Change an account's name, password, role or sites",
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
		a, err := database.GetAccountByEmail(args[0])
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("name") {
			a.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("password") {
			a.Credential, _ = cmd.Flags().GetString("password")
			if a.Credential == "" {
				return fmt.Errorf("password cannot be empty")
			}
		}
		if cmd.Flags().Changed("role") {
			r, _ := cmd.Flags().GetString("role")
			if a.Role, err = parseRole(r); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("sites") {
			s, _ := cmd.Flags().GetString("sites")
			if a.PermittedSites, err = resolveSiteList(database, splitList(s)); err != nil {
				return err
			}
		}

		if err := database.UpdateAccount(a); err != nil {
			return err
		}
		output.Success("UPDATED account %s", a.Email)
		return nil
	},
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete <email>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		me, err := requireAdmin(database)
		if err != nil {
			return err
		}
		a, err := database.GetAccountByEmail(args[0])
		if err != nil {
			return err
		}
		if a.ID == me.ID {
			return fmt.Errorf("cannot delete the logged-in account")
		}
		if err := database.DeleteAccount(a.ID); err != nil {
			return err
		}
		output.Success("DELETED account %s", a.Email)
		return nil
	},
}

func init() {
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountUpdateCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	rootCmd.AddCommand(accountCmd)

	accountAddCmd.Flags().StringP("name", "n", "", "Display name (defaults to the email)")
	accountAddCmd.Flags().StringP("password", "p", "", "Password")
	accountAddCmd.Flags().StringP("role", "r", "operator", "admin or operator")
	accountAddCmd.Flags().StringP("sites", "s", "", "Comma-separated permitted sites")

	accountListCmd.Flags().Bool("json", false, "JSON output")

	accountUpdateCmd.Flags().StringP("name", "n", "", "Display name")
	accountUpdateCmd.Flags().StringP("password", "p", "", "New password")
	accountUpdateCmd.Flags().StringP("role", "r", "", "admin or operator")
	accountUpdateCmd.Flags().StringP("sites", "s", "", "Comma-separated permitted sites (empty clears)")
}
