package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/zulandar/opsdeck/internal/config"
	"github.com/zulandar/opsdeck/internal/dashboard"
	"github.com/zulandar/opsdeck/internal/kanban"
	"github.com/zulandar/opsdeck/internal/logging"
	"github.com/zulandar/opsdeck/internal/notify"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard API server",
		Long:  "Serves the task tree, stat tiles, analytics and the Kanban board as a JSON API with a server-sent event stream.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Dashboard.Port = port
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	return cmd
}

// notifier chains the log notifier with every configured webhook.
func notifier(cfg *config.Config, log logrus.FieldLogger) (notify.Notifier, error) {
	chain := notify.Multi{notify.Log{Logger: log}}
	if cfg.Notify.SlackWebhookURL != "" {
		s, err := notify.NewSlack(cfg.Notify.SlackWebhookURL)
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
	}
	if cfg.Notify.DiscordWebhookID != "" {
		d, err := notify.NewDiscord(cfg.Notify.DiscordWebhookID, cfg.Notify.DiscordWebhookToken)
		if err != nil {
			return nil, err
		}
		chain = append(chain, d)
	}
	return chain, nil
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	entry := log.WithField("tenant", cfg.Tenant)

	st, err := newStore(cfg)
	if err != nil {
		return err
	}
	board, err := kanban.NewBoard(cfg.BoardTitles())
	if err != nil {
		return err
	}
	n, err := notifier(cfg, entry)
	if err != nil {
		return err
	}
	metrics := dashboard.NewMetrics()

	ctrl := kanban.New(st, kanban.Options{
		Board:         board,
		RemoteTimeout: cfg.RemoteTimeout(),
		Logger:        entry,
		OnError:       notify.Hook(n, cfg.Tenant, entry, cfg.RemoteTimeout()),
		OnSettle:      metrics.ObserveMove,
	})
	defer ctrl.Wait()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := ctrl.Refresh(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		Backend:         st,
		Controller:      ctrl,
		Calendar:        st.Calendar(),
		Metrics:         metrics,
		Logger:          entry,
		Port:            cfg.Dashboard.Port,
		Out:             cmd.OutOrStdout(),
		Reconcile:       cfg.Dashboard.Reconcile,
		AnalyticsMaxAge: cfg.AnalyticsMaxAge(),
		RemoteTimeout:   cfg.RemoteTimeout(),
	})
}
