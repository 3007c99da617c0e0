/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/freyjabench/pkg/binding"
	"github.com/ssargent/freyjabench/pkg/config"
	"github.com/ssargent/freyjabench/pkg/di"
)

// annotation marking commands that run without opening the store
const skipStoreAnnotation = "freyjabench/skip-store"

var container *di.Container

// SetContainer injects the dependency container used by every command
func SetContainer(c *di.Container) {
	container = c
}

type sessionKey struct{}

// session is what PersistentPreRunE hands to the command being run
type session struct {
	cfg    *config.Config
	log    *zap.SugaredLogger
	logger *zap.Logger
	client *binding.Client
}

func (s *session) release() error {
	if s == nil {
		return nil
	}
	var err error
	if s.client != nil {
		err = s.client.Close()
	}
	if s.logger != nil {
		_ = s.logger.Sync()
	}
	return err
}

// current is the open session, released by Execute on every exit path
var current *session

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "freyjabench",
	Short: "freyjabench - YCSB-style benchmark binding for embedded KV stores",
	Long: `freyjabench stores benchmark records as JSON documents in an embedded
ordered key-value store (pebble, leveldb, sqlite, an append-only log, or memory)
and drives read/insert/update/delete workloads against it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipsStore(cmd) {
			return nil
		}

		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		warnings, err := cfg.Validate()
		if err != nil {
			return err
		}

		logger, err := container.GetLoggerFactory().NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		log := logger.Sugar()
		for _, w := range warnings {
			log.Warnw("configuration warning", "warning", w)
		}

		client, err := container.GetClientFactory().OpenClient(cfg,
			binding.WithLogger(log),
			binding.WithObserver(container.GetMetrics()))
		if err != nil {
			_ = logger.Sync()
			return fmt.Errorf("failed to open store: %w", err)
		}

		current = &session{cfg: cfg, log: log, logger: logger, client: client}
		cmd.SetContext(context.WithValue(cmd.Context(), sessionKey{}, current))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return releaseSession()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	// A failing RunE skips PersistentPostRunE, so release here too
	if releaseErr := releaseSession(); err == nil {
		err = releaseErr
	}
	if err != nil {
		os.Exit(1)
	}
}

func releaseSession() error {
	s := current
	current = nil
	return s.release()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default "+config.GetDefaultConfigPath()+" if present)")
	rootCmd.PersistentFlags().String("driver", "", "Storage driver: pebble, leveldb, sqlite, log or memory")
	rootCmd.PersistentFlags().StringP("path", "d", "", "Storage directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the config file, falling back to defaults, and applies
// any global flags that were set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	switch {
	case path != "":
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case config.ConfigExists(config.GetDefaultConfigPath()):
		loaded, err := config.LoadConfig(config.GetDefaultConfigPath())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		cfg = config.DefaultConfig()
	}

	if cmd.Flags().Changed("driver") {
		cfg.Storage.Driver, _ = cmd.Flags().GetString("driver")
	}
	if cmd.Flags().Changed("path") {
		cfg.Storage.Path, _ = cmd.Flags().GetString("path")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, nil
}

func skipsStore(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipStoreAnnotation] == "true" {
			return true
		}
	}
	return false
}

func sessionFrom(cmd *cobra.Command) (*session, error) {
	s, ok := cmd.Context().Value(sessionKey{}).(*session)
	if !ok || s == nil {
		return nil, fmt.Errorf("store not found in context")
	}
	return s, nil
}
