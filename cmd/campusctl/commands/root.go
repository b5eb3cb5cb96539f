// Package commands implements the campusctl administration commands.
package commands

import (
	"campusbot/internal/config"
	"campusbot/internal/database"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the campusctl command tree
func NewRootCmd(version string) *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:   "campusctl",
		Short: "CampusBot administration tool",
		Long: `campusctl runs maintenance tasks against a CampusBot deployment using
the same environment variables as the server.

Examples:
  campusctl promote-admins
  campusctl test-provider gemini
  campusctl reindex`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(envFile); err != nil {
				log.Printf("⚠️  No env file loaded from %s: %v", envFile, err)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to the environment file")

	rootCmd.AddCommand(
		newPromoteAdminsCmd(),
		newTestProviderCmd(),
		newReindexCmd(),
	)
	return rootCmd
}

func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
