package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/HendryAvila/divine-quiz/internal/analytics"
	"github.com/HendryAvila/divine-quiz/internal/config"
	"github.com/HendryAvila/divine-quiz/internal/kvstore"
	"github.com/HendryAvila/divine-quiz/internal/logging"
	"github.com/HendryAvila/divine-quiz/internal/observability"
	"github.com/HendryAvila/divine-quiz/internal/questions"
	"github.com/HendryAvila/divine-quiz/internal/settings"
)

// flagKeys maps command-line flags to config keys. Flags missing from a
// command are skipped.
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"store-driver": "store.driver",
	"data-dir":     "store.data_dir",
	"addr":         "http.addr",
}

// app carries what every command shares once the config is loaded.
type app struct {
	configFile string
	envFile    string

	cfg    config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:           "divinequiz",
		Short:         "Divine quiz funnel server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./"+config.DefaultConfigName+".{yaml,json,toml} if present)")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	pf.String("log-level", defaults.Log.Level, "log level (debug, info, warn, error)")
	pf.String("store-driver", defaults.Store.Driver, "storage driver (memory, file, sqlite, redis)")
	pf.String("data-dir", defaults.Store.DataDir, "data directory for the file and sqlite drivers")

	root.AddCommand(
		newServeCmd(a),
		newMCPCmd(a),
		newCodeCmd(),
		newQuestionsCmd(a),
		newAdminCmd(),
		newVersionCmd(),
	)
	return root
}

// load reads the config for cmd and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	flags := make(map[string]*pflag.Flag, len(flagKeys))
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			flags[key] = f
		}
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.configFile,
		EnvFile:    a.envFile,
		Flags:      flags,
	})
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// services are the storage-backed components every surface shares.
type services struct {
	store     kvstore.Store
	questions *questions.Repository
	settings  *settings.Service
	analytics *analytics.Recorder
}

// openServices opens the configured store and builds the services on it.
// metrics may be nil.
func (a *app) openServices(ctx context.Context, metrics *observability.Metrics) (*services, error) {
	store, err := kvstore.Open(ctx, a.cfg.KVStore())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", a.cfg.Store.Driver, err)
	}

	repo := questions.NewRepository(store, questions.WithLogger(a.logger.Named("questions")))
	if err := repo.Reload(ctx); err != nil {
		// The repository falls back to the defaults and stays usable.
		a.logger.Warn("question bank loaded with defaults", "error", err)
	}

	return &services{
		store:     store,
		questions: repo,
		settings:  settings.NewService(store, a.logger.Named("settings")),
		analytics: analytics.NewRecorder(store,
			analytics.WithLogger(a.logger.Named("analytics")),
			analytics.WithMetrics(metrics),
		),
	}, nil
}

func (s *services) Close() error {
	return s.store.Close()
}
