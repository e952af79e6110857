package cmd

import (
	"fmt"
	"log"

	"WaveFM/config"
	"WaveFM/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migration",
	Long:  `Create or update the WaveFM database schema without starting the server.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer db.CloseGormDB()

		if err := db.AutoMigrateAll(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}

		fmt.Println("Migration complete.")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
