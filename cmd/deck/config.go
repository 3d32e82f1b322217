package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/zulandar/opsdeck/internal/config"
	"github.com/zulandar/opsdeck/internal/db"
	"github.com/zulandar/opsdeck/internal/store"
)

// newViper binds DECK_* environment variables and the persistent flags.
// Config keys use dots, so database.path is read from DECK_DATABASE_PATH.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("DECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"config", "tenant"} {
		if f := cmd.Flag(name); f != nil {
			if err := v.BindPFlag(name, f); err != nil {
				return nil, fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	return v, nil
}

// loadConfig reads the config file named by --config, then lets flags and
// the environment override it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}
	path := v.GetString("config")
	cfg, err := config.LoadOverlay(path, func(c *config.Config) { overlay(v, c) })
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// overlay copies every key viper has a value for onto c.
func overlay(v *viper.Viper, c *config.Config) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	str("tenant", &c.Tenant)
	str("database.driver", &c.Database.Driver)
	str("database.path", &c.Database.Path)
	str("database.host", &c.Database.Host)
	num("database.port", &c.Database.Port)
	str("database.user", &c.Database.User)
	str("database.password", &c.Database.Password)
	str("database.name", &c.Database.Name)
	num("dashboard.port", &c.Dashboard.Port)
	str("dashboard.reconcile", &c.Dashboard.Reconcile)
	num("dashboard.remote_timeout_sec", &c.Dashboard.RemoteTimeoutSec)
	str("dashboard.analytics_max_age", &c.Dashboard.AnalyticsMaxAge)
	str("log.level", &c.Log.Level)
	str("log.format", &c.Log.Format)
	str("notify.slack_webhook_url", &c.Notify.SlackWebhookURL)
	str("notify.discord_webhook_id", &c.Notify.DiscordWebhookID)
	str("notify.discord_webhook_token", &c.Notify.DiscordWebhookToken)
	str("board.timezone", &c.Board.Timezone)
}

// openStore loads config and returns the tenant-scoped store for the
// configured database.
func openStore(cmd *cobra.Command) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func newStore(cfg *config.Config) (*store.Store, error) {
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	st := store.New(gormDB, cfg.Tenant)
	st.Location = cfg.Location()
	return st, nil
}

// parseDay reads a YYYY-MM-DD flag value.
func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("date %q: want YYYY-MM-DD", raw)
	}
	return &d, nil
}
