package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/opsdeck/internal/config"
	"github.com/zulandar/opsdeck/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var demo bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Opsdeck database",
		Long:  "Creates the database if needed, migrates all tables and registers the tenant. With --demo, seeds a sample board.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runDBInit(cmd, cfg, demo)
		},
	}

	cmd.Flags().BoolVar(&demo, "demo", false, "seed a sample board")
	return cmd
}

func runDBInit(cmd *cobra.Command, cfg *config.Config, demo bool) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing tenant %q on %s\n", cfg.Tenant, cfg.Database.Driver)

	if cfg.Database.Driver == config.DriverMySQL {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedTenant(gormDB, cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Tenant %q registered\n", cfg.Tenant)

	if demo {
		if err := db.SeedDemo(gormDB, cfg.Tenant, time.Now()); err != nil {
			return err
		}
		fmt.Fprintln(out, "Seeded demo board")
	}

	fmt.Fprintln(out, "\nOpsdeck database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Opsdeck database",
		Long:  "Drops every table of the configured database, then migrates and registers the tenant again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			target := cfg.Database.Path
			if cfg.Database.Driver == config.DriverMySQL {
				target = cfg.Database.Name
			}
			if !yes && !confirm(cmd, fmt.Sprintf("This will permanently delete all data in %q.", target)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}
			if err := dropDatabase(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", target)
			return runDBInit(cmd, cfg, false)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func dropDatabase(cfg *config.Config) error {
	if cfg.Database.Driver == config.DriverSQLite {
		if err := os.Remove(cfg.Database.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", cfg.Database.Path, err)
		}
		return nil
	}
	adminDB, err := db.ConnectAdmin(cfg.Database)
	if err != nil {
		return err
	}
	return db.DropDatabase(adminDB, cfg.Database.Name)
}
