package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	lcmemory "github.com/tmc/langchaingo/memory"

	"github.com/avvvet/hrbuddy-intent/internal/logger"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Manager keeps conversation transcripts and the per-user session index
type Manager struct {
	history History
	now     func() time.Time
	logger  logger.Logger
}

func NewManager(history History, log logger.Logger) *Manager {
	return &Manager{
		history: history,
		now:     time.Now,
		logger:  log,
	}
}

// CreateSession opens a new session for userID and returns its id
func (m *Manager) CreateSession(ctx context.Context, userID string) (string, error) {
	sessionID := uuid.NewString()
	if err := m.history.Touch(ctx, userID, sessionID, m.now()); err != nil {
		return "", err
	}
	m.logger.Info("session created", map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
	})
	return sessionID, nil
}

// Sessions lists userID's recent sessions, newest first
func (m *Manager) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	return m.history.Sessions(ctx, userID)
}

// RecordTurn appends the user's message and the reply to the transcript
func (m *Manager) RecordTurn(ctx context.Context, key Key, userMessage, reply string) error {
	now := m.now()
	if err := m.history.Append(ctx, key, Message{Role: RoleUser, Content: userMessage, Timestamp: now}); err != nil {
		return err
	}
	if reply != "" {
		if err := m.history.Append(ctx, key, Message{Role: RoleAssistant, Content: reply, Timestamp: now}); err != nil {
			return err
		}
	}
	return m.history.Touch(ctx, key.UserID, key.SessionID, now)
}

// ChatHistory loads the transcript into a langchaingo chat history
func (m *Manager) ChatHistory(ctx context.Context, key Key) ([]llms.ChatMessage, error) {
	msgs, err := m.history.Messages(ctx, key)
	if err != nil {
		return nil, err
	}

	buffer := lcmemory.NewChatMessageHistory()
	for _, msg := range msgs {
		var chatMsg llms.ChatMessage

		switch msg.Role {
		case RoleUser:
			chatMsg = llms.HumanChatMessage{Content: msg.Content}
		case RoleAssistant:
			chatMsg = llms.AIChatMessage{Content: msg.Content}
		default:
			m.logger.Warn("unknown message role, skipping", map[string]interface{}{"role": msg.Role})
			continue
		}

		if err := buffer.AddMessage(ctx, chatMsg); err != nil {
			return nil, fmt.Errorf("failed to add message to memory: %w", err)
		}
	}

	return buffer.Messages(ctx)
}

// FormattedHistory renders the transcript one line per message
func (m *Manager) FormattedHistory(ctx context.Context, key Key) (string, error) {
	messages, err := m.ChatHistory(ctx, key)
	if err != nil {
		return "", err
	}

	if len(messages) == 0 {
		return "No previous conversation.", nil
	}

	var b strings.Builder
	for _, msg := range messages {
		switch msg.GetType() {
		case llms.ChatMessageTypeHuman:
			fmt.Fprintf(&b, "User: %s\n", msg.GetContent())
		case llms.ChatMessageTypeAI:
			fmt.Fprintf(&b, "Assistant: %s\n", msg.GetContent())
		}
	}
	return b.String(), nil
}

// Clear drops the transcript of one conversation
func (m *Manager) Clear(ctx context.Context, key Key) error {
	if err := m.history.Clear(ctx, key); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	return nil
}
