package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/models"
	"github.com/marcus/fueltrack/internal/output"
	"github.com/marcus/fueltrack/internal/session"
)

var errEmailRequired = errors.New("email is required")

// stdinIsTerminal reports whether prompts can be shown
func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptCredentials asks for whichever of email and credential is empty
func promptCredentials(email, credential *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errEmailRequired
				}
				return nil
			}))
	}
	if *credential == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(credential))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Log in with a local account",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		email, _ := cmd.Flags().GetString("email")
		credential, _ := cmd.Flags().GetString("password")
		if (email == "" || credential == "") && stdinIsTerminal() {
			if err := promptCredentials(&email, &credential); err != nil {
				return err
			}
		}

		a, err := session.Login(database, getDataDir(), email, credential)
		if err != nil {
			return err
		}
		output.Success("Logged in as %s (%s)", a.Name, a.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget the logged-in account",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := session.Logout(getDataDir()); err != nil {
			return fmt.Errorf("logout: %w", err)
		}
		output.Success("Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:     "whoami",
	Short:   "Show the logged-in account",
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		a, err := requireAccount(database)
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return output.JSON(a)
		}
		fmt.Print(formatAccount(a, siteNames(database)))
		return nil
	},
}

// siteNames maps site ids to names for display
func siteNames(database *db.DB) map[string]string {
	names := make(map[string]string)
	sites, err := database.ListSites()
	if err != nil {
		return names
	}
	for _, s := range sites {
		names[s.ID] = s.Name
	}
	return names
}

// formatAccount renders an account with its permitted sites
func formatAccount(a *models.Account, sites map[string]string) string {
	var sb strings.Builder
	sb.WriteString(output.Title(fmt.Sprintf("%s <%s>", a.Name, a.Email)))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Role: %s\n", a.Role))
	switch {
	case a.IsAdmin() && len(a.PermittedSites) == 0:
		sb.WriteString("Sites: all\n")
	case len(a.PermittedSites) == 0:
		sb.WriteString("Sites: none\n")
	default:
		names := make([]string, 0, len(a.PermittedSites))
		for _, id := range a.PermittedSites {
			name := sites[id]
			if name == "" {
				name = models.Placeholder
			}
			names = append(names, fmt.Sprintf("%s (%s)", name, output.ShortID(id)))
		}
		sb.WriteString("Sites: " + strings.Join(names, ", ") + "\n")
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	loginCmd.Flags().StringP("email", "e", "", "Account email")
	loginCmd.Flags().StringP("password", "p", "", "Account password")
	whoamiCmd.Flags().Bool("json", false, "JSON output")
}
