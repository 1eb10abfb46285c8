package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/metrics"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

type memoryEntry struct {
	data    []byte
	version uint64
	expires time.Time
}

// InMemoryStore is a process-local Store with the same CAS semantics as RedisStore.
// It backs the local chat CLI and tests.
type InMemoryStore struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	ttl        time.Duration
	maxRetries int
	now        func() time.Time
}

func NewInMemoryStore(opts StoreOptions) *InMemoryStore {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &InMemoryStore{
		entries:    make(map[string]memoryEntry),
		ttl:        opts.TTL,
		maxRetries: opts.MaxRetries,
		now:        opts.Now,
	}
}

func (m *InMemoryStore) snapshot(key Key) (*models.ConversationState, uint64, error) {
	m.mu.Lock()
	entry, ok := m.entries[key.StateKey()]
	m.mu.Unlock()

	if !ok || (!entry.expires.IsZero() && m.now().After(entry.expires)) {
		return nil, entry.version, ErrNotFound
	}

	var state models.ConversationState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, entry.version, ErrNotFound
	}
	if state.Slots == nil {
		state.Slots = models.Slots{}
	}
	if expired(&state, m.ttl, m.now()) {
		return nil, entry.version, ErrNotFound
	}
	return &state, entry.version, nil
}

func (m *InMemoryStore) Load(ctx context.Context, key Key) (*models.ConversationState, error) {
	state, _, err := m.snapshot(key)
	return state, err
}

func (m *InMemoryStore) Save(ctx context.Context, key Key, state *models.ConversationState, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.ttl
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry := m.entries[key.StateKey()]
	m.entries[key.StateKey()] = memoryEntry{data: data, version: entry.version + 1, expires: m.now().Add(ttl)}
	return nil
}

func (m *InMemoryStore) Clear(ctx context.Context, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key.StateKey()]; ok {
		// keep the version so an in-flight Update still sees the clear as a conflict
		m.entries[key.StateKey()] = memoryEntry{version: entry.version + 1}
	}
	return nil
}

func (m *InMemoryStore) Update(ctx context.Context, key Key, fn UpdateFunc) (*models.ConversationState, error) {
	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state, version, err := m.snapshot(key)
		if err == ErrNotFound {
			state = newState()
		} else if err != nil {
			return nil, err
		}

		if err := fn(state); err != nil {
			return nil, err
		}

		data, err := json.Marshal(state)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state: %w", err)
		}

		m.mu.Lock()
		current := m.entries[key.StateKey()]
		if current.version == version {
			m.entries[key.StateKey()] = memoryEntry{data: data, version: version + 1, expires: m.now().Add(m.ttl)}
			m.mu.Unlock()
			return state, nil
		}
		m.mu.Unlock()
		metrics.StateConflicts.Inc()
	}
	return nil, ErrStateConflict
}

// InMemoryHistory is a process-local History
type InMemoryHistory struct {
	mu         sync.Mutex
	transcript map[string][]Message
	sessions   map[string]map[string]time.Time
}

func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{
		transcript: make(map[string][]Message),
		sessions:   make(map[string]map[string]time.Time),
	}
}

func (h *InMemoryHistory) Append(ctx context.Context, key Key, msg Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := append(h.transcript[key.HistoryKey()], msg)
	if len(msgs) > maxTranscript {
		msgs = msgs[len(msgs)-maxTranscript:]
	}
	h.transcript[key.HistoryKey()] = msgs
	return nil
}

func (h *InMemoryHistory) Messages(ctx context.Context, key Key) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.transcript[key.HistoryKey()]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (h *InMemoryHistory) Clear(ctx context.Context, key Key) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.transcript, key.HistoryKey())
	return nil
}

func (h *InMemoryHistory) Touch(ctx context.Context, userID, sessionID string, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[string]time.Time)
	}
	h.sessions[userID][sessionID] = at
	return nil
}

func (h *InMemoryHistory) Sessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SessionInfo, 0, len(h.sessions[userID]))
	for id, at := range h.sessions[userID] {
		out = append(out, SessionInfo{SessionID: id, LastActivity: at})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}
