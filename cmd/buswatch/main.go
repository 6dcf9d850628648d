package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dnguyen/buswatch/internal/api"
	"github.com/dnguyen/buswatch/internal/app"
	"github.com/dnguyen/buswatch/internal/authprovider"
	"github.com/dnguyen/buswatch/internal/busfeed"
	"github.com/dnguyen/buswatch/internal/cache"
	"github.com/dnguyen/buswatch/internal/credential"
	"github.com/dnguyen/buswatch/internal/logging"
	"github.com/dnguyen/buswatch/internal/model"
	"github.com/dnguyen/buswatch/internal/notify"
	"github.com/dnguyen/buswatch/internal/session"
	"github.com/dnguyen/buswatch/internal/store"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "buswatch",
		Short: "Terminal client for live bus tracking, booking, and notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the buswatch version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("buswatch", version)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "config-path",
		Short: "Print the config file and data directory locations",
		Run: func(cmd *cobra.Command, args []string) {
			path := configPath
			if path == "" {
				path = model.DefaultConfigPath()
			}
			fmt.Println("config:", path)
			fmt.Println("data:  ", model.DefaultDataDir())
			fmt.Println("log:   ", logging.Describe(model.DefaultDataDir()))
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// run wires the application together and hands control to Bubble Tea.
func run(configPath string) error {
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// First run: persist the defaults so the user has a file to edit.
	if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
		if saveErr := model.SaveConfig(configPath, cfg); saveErr != nil {
			return fmt.Errorf("writing default config: %w", saveErr)
		}
	}

	dataDir := model.DefaultDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	log := logging.New(dataDir).Level(logging.Level(cfg.Display.LogLevel))
	log.Info().Str("version", version).Msg("starting buswatch")

	st, err := store.NewSQLiteStore(filepath.Join(dataDir, "buswatch.db"))
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	defer st.Close()

	responseCache := cache.New(st, log)

	client := api.NewClient(cfg.API.BaseURL, log)

	var provider *authprovider.Client
	if cfg.Auth.URL != "" {
		provider = authprovider.New(cfg.Auth.URL, cfg.Auth.AnonKey, log)
	}

	var providerSessions session.Provider
	if provider != nil {
		providerSessions = provider
	}
	sessions := session.New(client, credential.TokenStore{}, providerSessions, log)

	center := notify.New(client, log,
		notify.WithCue(app.TerminalBell(cfg.Display.Mute)),
		notify.WithMinInterval(time.Duration(cfg.Sync.NotificationMinIntervalSec)*time.Second),
	)

	feed := busfeed.New(client, responseCache, log)

	m := app.New(app.Deps{
		Config:   cfg,
		API:      client,
		Session:  sessions,
		Center:   center,
		Feed:     feed,
		Provider: provider,
		Log:      log,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}
