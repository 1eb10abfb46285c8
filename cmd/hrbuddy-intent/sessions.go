package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/avvvet/hrbuddy-intent/internal/memory"
)

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sessions",
		Short:         "List the user's recent sessions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.InMemory {
				return fmt.Errorf("sessions are only kept in Redis")
			}
			cfg, err := loadStateConfig()
			if err != nil {
				return err
			}
			b, err := rootOpts.openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()

			sessions, err := b.history.Sessions(cmd.Context(), rootOpts.UserID)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", s.SessionID, s.LastActivity.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:           "history",
		Short:         "Print the transcript of a session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.InMemory {
				return fmt.Errorf("transcripts are only kept in Redis")
			}
			cfg, err := loadStateConfig()
			if err != nil {
				return err
			}
			b, err := rootOpts.openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer b.close()

			text, err := b.history.FormattedHistory(cmd.Context(), memory.Key{UserID: rootOpts.UserID, SessionID: sessionID})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), text)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
