package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ysrcpconnect/connect/internal/api"
	"github.com/ysrcpconnect/connect/internal/auth"
	"github.com/ysrcpconnect/connect/internal/cache"
	"github.com/ysrcpconnect/connect/internal/config"
	"github.com/ysrcpconnect/connect/internal/debuglog"
	"github.com/ysrcpconnect/connect/internal/feed"
	"github.com/ysrcpconnect/connect/internal/notifications"
	"github.com/ysrcpconnect/connect/internal/profile"
	"github.com/ysrcpconnect/connect/internal/search"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	flagConfig string
	flagDB     string
)

// app bundles the wired client layer: store, auth, API client and the
// per-resource coordinators, in dependency order.
type app struct {
	cfg           *config.Config
	store         *cache.Store
	auth          *auth.Manager
	client        *api.Client
	feed          *feed.Coordinator
	profile       *profile.Coordinator
	notifications *notifications.Coordinator
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if flagDB != "" {
		cfg.Database.Path = flagDB
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	// Opportunistic sweep; there is no background scheduler.
	store.CleanupExpired()

	manager := auth.NewManager(store)
	client := api.NewClient(cfg.API.BaseURL, cfg.API.Timeout, cfg.API.UserAgent, manager)
	manager.SetClient(client)

	if err := manager.Restore(); err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:           cfg,
		store:         store,
		auth:          manager,
		client:        client,
		feed:          feed.NewCoordinator(client, store, cfg),
		profile:       profile.NewCoordinator(client, store, cfg),
		notifications: notifications.NewCoordinator(client, store, cfg),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	debuglog.Close()
}

func newSearchEngine(a *app) (*search.Engine, error) {
	if a.cfg.Search.InMemory {
		return search.NewEngine("")
	}
	return search.NewEngine(a.cfg.Search.IndexPath)
}

func main() {
	root := &cobra.Command{
		Use:           "connect",
		Short:         "YSRCPConnect client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flagDB, "db", "", "Path to database file (overrides config)")

	root.AddCommand(
		newGenerateConfigCmd(),
		newLoginCmd(),
		newLogoutCmd(),
		newStatusCmd(),
		newRoleCmd(),
		newVerifyCmd(),
		newFeedCmd(),
		newPostCmd(),
		newProfileCmd(),
		newNotificationsCmd(),
		newSearchCmd(),
		newSettingsCmd(),
		newCacheCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Generate default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := os.UserHomeDir()
			configFile := filepath.Join(home, ".config", "connect", "config.toml")
			if err := config.GenerateDefaultConfig(configFile); err != nil {
				return fmt.Errorf("generating config: %w", err)
			}
			fmt.Printf("Generated default configuration at: %s\n", configFile)
			return nil
		},
	}
}
