package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/handlers"
	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/options"
	"github.com/avvvet/hrbuddy-intent/internal/oracle"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// ChatOptions holds flags for the chat command.
type ChatOptions struct {
	*RootOptions
	SessionID string
	ShowSlots bool
}

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation with the intent engine.

Every line is one turn. Completed requests are executed in dry-run mode.
Type "exit" to quit.

Example:
  hrbuddy-intent chat --in-memory
  > apply on duty for today
  > 9am to 6pm
  > client visit`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SessionID, "session", "", "resume an existing session")
	cmd.Flags().BoolVar(&opts.ShowSlots, "slots", true, "print the collected slots after each turn")

	return cmd
}

func runChat(cmd *cobra.Command, opts *ChatOptions) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	b, err := opts.openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	model, err := oracle.NewModel(cfg)
	if err != nil {
		return err
	}
	registry := schema.Default()

	handler := handlers.NewTurnHandler(handlers.Deps{
		Registry: registry,
		Oracle: oracle.NewLangChainOracle(model, registry, oracle.Options{
			MaxTokens:   cfg.OracleMaxTokens,
			Temperature: cfg.OracleTemperature,
		}, b.log),
		Store:   b.store,
		History: b.history,
		Options: options.NewCache(options.StaticSource{
			schema.OptionLeaveTypes: opts.LeaveTypes,
		}, cfg.OptionsCacheTTL, b.log),
		Executor:             handlers.DryRunExecutor{Logger: b.log},
		Logger:               b.log,
		OracleTimeout:        cfg.OracleTimeout,
		MinConfidence:        cfg.OracleMinConfidence,
		StickyLock:           cfg.StickyLock,
		ResidualTextFallback: cfg.ResidualTextFallback,
	})

	sessionID := opts.SessionID
	if sessionID == "" {
		if sessionID, err = b.history.CreateSession(ctx, opts.UserID); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s (type \"exit\" to quit)\n", sessionID)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		response, err := handler.ProcessTurn(ctx, &models.TurnRequest{
			UserID:    opts.UserID,
			SessionID: sessionID,
			Message:   line,
		})
		if err != nil {
			return err
		}
		printResponse(out, response, opts.ShowSlots)
	}
	return scanner.Err()
}

func printResponse(out io.Writer, response *models.TurnResponse, showSlots bool) {
	fmt.Fprintf(out, "[%s] %s\n", response.Status, response.UserMessage)
	if response.ErrorCode != nil {
		fmt.Fprintf(out, "  error: %s\n", *response.ErrorCode)
	}
	if showSlots && response.Intent != models.IntentUnknown {
		slots, _ := json.Marshal(response.Slots)
		fmt.Fprintf(out, "  intent=%s slots=%s missing=%v\n", response.Intent, slots, response.MissingFields)
	}
}
