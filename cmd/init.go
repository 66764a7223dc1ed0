package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/fueltrack/internal/db"
	"github.com/marcus/fueltrack/internal/output"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local store",
	Long:    `Creates the data directory and SQLite database and provisions the default administrator on first run.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir := getDataDir()

		database, err := db.Initialize(dataDir, db.WithDriver(currentConfig().Storage.Driver))
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer database.Close()

		created, err := database.EnsureAdminAccount()
		if err != nil {
			return fmt.Errorf("provision admin: %w", err)
		}

		fmt.Printf("INITIALIZED %s\n", dataDir)
		if created {
			output.Warning("default administrator created: %s / %s (change it with 'fuel account update')",
				db.DefaultAdminEmail, db.DefaultAdminCredential)
		}

		// Keep the store out of version control when the workspace has a .gitignore
		gitignorePath := filepath.Join(getBaseDir(), ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			if rel, err := filepath.Rel(getBaseDir(), dataDir); err == nil && !strings.HasPrefix(rel, "..") {
				addToGitignore(gitignorePath, filepath.ToSlash(rel)+"/")
			}
		}
		return nil
	},
}

func addToGitignore(path, entry string) {
	content, _ := os.ReadFile(path)
	contentStr := string(content)

	for _, line := range strings.Split(contentStr, "\n") {
		if strings.TrimSpace(line) == entry {
			return
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(contentStr) > 0 && !strings.HasSuffix(contentStr, "\n") {
		f.WriteString("\n")
	}
	f.WriteString(entry + "\n")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
