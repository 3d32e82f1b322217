package main

import (
	"strings"
	"testing"

	"github.com/zulandar/opsdeck/internal/config"
	"github.com/zulandar/opsdeck/internal/logging"
	"github.com/zulandar/opsdeck/internal/notify"
)

func TestNotifier_Chain(t *testing.T) {
	tests := []struct {
		name   string
		notify config.NotifyConfig
		want   int
	}{
		{"log only", config.NotifyConfig{}, 1},
		{"slack", config.NotifyConfig{SlackWebhookURL: "https://hooks.slack.com/services/T/B/X"}, 2},
		{"slack and discord", config.NotifyConfig{
			SlackWebhookURL:     "https://hooks.slack.com/services/T/B/X",
			DiscordWebhookID:    "123",
			DiscordWebhookToken: "tok",
		}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default("acme")
			cfg.Notify = tt.notify
			n, err := notifier(cfg, logging.Discard())
			if err != nil {
				t.Fatalf("notifier: %v", err)
			}
			multi, ok := n.(notify.Multi)
			if !ok {
				t.Fatalf("notifier type = %T, want notify.Multi", n)
			}
			if len(multi) != tt.want {
				t.Errorf("chain length = %d, want %d", len(multi), tt.want)
			}
		})
	}
}

func TestServeCmd_Help(t *testing.T) {
	out, err := runDeck(t, "", "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help: %v", err)
	}
	if !strings.Contains(out, "--port") {
		t.Errorf("help missing --port:\n%s", out)
	}
}

func TestServeCmd_BadConfig(t *testing.T) {
	t.Setenv("DECK_TENANT", "acme")
	t.Setenv("DECK_LOG_LEVEL", "chatty")
	_, err := runDeck(t, "", "--config", t.TempDir()+"/missing.yaml", "serve")
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("err = %v, want log.level validation error", err)
	}
}
