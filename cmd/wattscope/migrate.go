package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bher20/wattscope/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the SQL schema (sqlite and postgres)",
}

func init() {
	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadSQLConfig()
				if err != nil {
					return err
				}
				if err := migrate.Up(cmd.Context(), cfg.driver, cfg.dsn); err != nil {
					return err
				}
				v, err := migrate.Version(cmd.Context(), cfg.driver, cfg.dsn)
				if err != nil {
					return err
				}
				fmt.Printf("schema at version %d\n", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadSQLConfig()
				if err != nil {
					return err
				}
				return migrate.Down(cmd.Context(), cfg.driver, cfg.dsn)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadSQLConfig()
				if err != nil {
					return err
				}
				return migrate.Status(cmd.Context(), cfg.driver, cfg.dsn)
			},
		},
	)
	rootCmd.AddCommand(migrateCmd)
}

type sqlConfig struct {
	driver, dsn string
}

func loadSQLConfig() (sqlConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return sqlConfig{}, err
	}
	switch cfg.Storage.Driver {
	case "sqlite", "postgres":
		return sqlConfig{driver: cfg.Storage.Driver, dsn: cfg.Storage.DSN}, nil
	default:
		return sqlConfig{}, fmt.Errorf("migrations need the sqlite or postgres driver, not %q", cfg.Storage.Driver)
	}
}
