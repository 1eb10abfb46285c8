package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

var (
	// ErrNotFound is returned by Load when no live state exists for a key
	ErrNotFound = errors.New("conversation state not found")
	// ErrStateConflict is returned by Update when every CAS attempt lost a race
	ErrStateConflict = errors.New("conversation state conflict")
)

// Key addresses one conversation
type Key struct {
	UserID    string
	SessionID string
}

// StateKey is the state store key for the conversation
func (k Key) StateKey() string {
	return fmt.Sprintf("state:%s:%s", k.UserID, k.SessionID)
}

// HistoryKey is the transcript key for the conversation
func (k Key) HistoryKey() string {
	return fmt.Sprintf("history:%s:%s", k.UserID, k.SessionID)
}

func sessionsKey(userID string) string {
	return fmt.Sprintf("user_sessions:%s", userID)
}

// UpdateFunc mutates state in place. Returning an error aborts the update without writing.
// It may run more than once when a concurrent writer wins, so it must not have side effects.
type UpdateFunc func(state *models.ConversationState) error

// Store persists ConversationState with a TTL
type Store interface {
	// Load returns ErrNotFound when the key is absent or expired
	Load(ctx context.Context, key Key) (*models.ConversationState, error)

	// Save overwrites the state and refreshes its TTL
	Save(ctx context.Context, key Key, state *models.ConversationState, ttl time.Duration) error

	// Clear removes the state; clearing an absent key is not an error
	Clear(ctx context.Context, key Key) error

	// Update runs a read-modify-write that is serialized against other writers of key.
	// An absent key is presented to fn as a fresh state.
	Update(ctx context.Context, key Key, fn UpdateFunc) (*models.ConversationState, error)
}

// Message is a single transcript line
type Message struct {
	Role      string    `json:"role"`      // "user" or "assistant"
	Content   string    `json:"content"`   // The actual message text
	Timestamp time.Time `json:"timestamp"` // When the message was sent
}

// SessionInfo is one entry of a user's session index
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	LastActivity time.Time `json:"last_activity"`
}

// History keeps the transcript and the per-user session index
type History interface {
	Append(ctx context.Context, key Key, msg Message) error
	Messages(ctx context.Context, key Key) ([]Message, error)
	Clear(ctx context.Context, key Key) error
	Touch(ctx context.Context, userID, sessionID string, at time.Time) error
	Sessions(ctx context.Context, userID string) ([]SessionInfo, error)
}

// expired reports whether state has outlived ttl
func expired(state *models.ConversationState, ttl time.Duration, now time.Time) bool {
	if ttl <= 0 || state.LastUpdated.IsZero() {
		return false
	}
	return now.Sub(state.LastUpdated) > ttl
}

func newState() *models.ConversationState {
	return &models.ConversationState{Slots: models.Slots{}}
}
