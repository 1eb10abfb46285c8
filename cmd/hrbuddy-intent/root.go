package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/memory"
)

// defaultLeaveTypes stand in for the HR backend's option list when running locally
var defaultLeaveTypes = []string{"Sick Leave", "Casual Leave", "Earned Leave", "Compensatory Off"}

// RootOptions holds the global flags
type RootOptions struct {
	UserID     string
	InMemory   bool
	LeaveTypes []string
	Verbose    bool
}

// NewRootCommand creates the root command for the hrbuddy-intent CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "hrbuddy-intent",
		Short: "Talk to the HR self-service intent engine from a terminal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.UserID == "" {
				return fmt.Errorf("--user must not be empty")
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.UserID, "user", "local-user", "user id the conversation belongs to")
	cmd.PersistentFlags().BoolVar(&opts.InMemory, "in-memory", false, "keep state in process instead of Redis")
	cmd.PersistentFlags().StringSliceVar(&opts.LeaveTypes, "leave-types", defaultLeaveTypes, "leave types offered to the user")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewChatCommand(opts))
	cmd.AddCommand(NewSessionsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// backend is the state wiring shared by the subcommands
type backend struct {
	cfg     *config.Config
	log     logger.Logger
	store   memory.Store
	history *memory.Manager
	close   func()
}

func (o *RootOptions) newLogger(cfg *config.Config) logger.Logger {
	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	return logger.NewStructured(level, cfg.LogFormat)
}

func (o *RootOptions) openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	log := o.newLogger(cfg)

	if o.InMemory {
		return &backend{
			cfg: cfg,
			log: log,
			store: memory.NewInMemoryStore(memory.StoreOptions{
				TTL:        cfg.StateTTL,
				MaxRetries: cfg.StateMaxRetries,
			}),
			history: memory.NewManager(memory.NewInMemoryHistory(), log),
			close:   func() {},
		}, nil
	}

	client, err := memory.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	store := memory.NewRedisStore(client, memory.StoreOptions{
		TTL:        cfg.StateTTL,
		MaxRetries: cfg.StateMaxRetries,
		Logger:     log,
	})
	return &backend{
		cfg:     cfg,
		log:     log,
		store:   store,
		history: memory.NewManager(memory.NewRedisHistory(client, cfg.HistoryTTL), log),
		close:   func() { _ = store.Close() },
	}, nil
}

// loadStateConfig reads the configuration without requiring oracle credentials
func loadStateConfig() (*config.Config, error) {
	v := config.Defaults()
	v.AutomaticEnv()
	cfg, err := config.FromViper(v)
	if err == nil {
		return cfg, nil
	}
	// sessions and history never call the oracle
	v.Set("LLM_PROVIDER", config.ProviderAnthropic)
	v.Set("ANTHROPIC_API_KEY", "unused")
	return config.FromViper(v)
}
