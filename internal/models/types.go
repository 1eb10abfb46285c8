package models

import (
	"sort"
	"time"
)

// Intent is the action a conversation is committed to
type Intent string

const (
	IntentApplyLeave          Intent = "apply_leave"
	IntentMarkAttendance      Intent = "mark_attendance"
	IntentCheckLeaveBalance   Intent = "check_leave_balance"
	IntentApplyOnDuty         Intent = "apply_onduty"
	IntentApplyRegularization Intent = "apply_regularization"
	IntentGetHolidays         Intent = "get_holidays"
	IntentGetSalarySlip       Intent = "get_salary_slip"
	IntentUnknown             Intent = "unknown"
)

func (i Intent) String() string {
	return string(i)
}

// Slots holds extracted slot values keyed by slot name
type Slots map[string]any

// Clone returns a deep copy of the slot map
func (s Slots) Clone() Slots {
	if s == nil {
		return Slots{}
	}
	out := make(Slots, len(s))
	for k, v := range s {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue deep-copies maps and slices inside a slot value
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = CloneValue(inner)
		}
		return m
	case Slots:
		return map[string]any(t.Clone())
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = CloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// ConversationState is persisted per (user_id, session_id)
type ConversationState struct {
	LockedIntent *Intent   `json:"locked_intent"`
	Slots        Slots     `json:"slots"`
	TurnCount    int       `json:"turn_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Locked returns the locked intent or an empty string when the conversation is uncommitted
func (s *ConversationState) Locked() Intent {
	if s == nil || s.LockedIntent == nil {
		return ""
	}
	return *s.LockedIntent
}

// Lock commits the conversation to intent, resetting slots when the intent changes
func (s *ConversationState) Lock(intent Intent) {
	if s.Locked() == intent {
		return
	}
	locked := intent
	s.LockedIntent = &locked
	s.Slots = Slots{}
}

// ExtractionResult is the transient analysis of one turn
type ExtractionResult struct {
	Intent         Intent   `json:"intent"`
	Confidence     float64  `json:"confidence"`
	ExtractedData  Slots    `json:"extracted_data"`
	MissingFields  []string `json:"missing_fields"`
	NextQuestion   *string  `json:"next_question"`
	ReadyToExecute bool     `json:"ready_to_execute"`
}

// ConversationMessage is a single transcript line
type ConversationMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Message string `json:"message"`
}

// NATS request from the chat backend
type TurnRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// NATS response to the chat backend
type TurnResponse struct {
	SessionID     string   `json:"session_id"`
	Intent        Intent   `json:"intent"`
	Status        string   `json:"status"`
	Slots         Slots    `json:"slots"`
	MissingFields []string `json:"missing_fields"`
	UserMessage   string   `json:"user_message"`
	ErrorCode     *string  `json:"error_code,omitempty"`
	ErrorMessage  *string  `json:"error_message,omitempty"`
}

// ActionRequest is handed to the execution collaborator once a request is complete
type ActionRequest struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Intent    Intent `json:"intent"`
	Slots     Slots  `json:"slots"`
}

// ActionResult is the execution collaborator's reply
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status constants
const (
	StatusNeedsInfo = "NEEDS_INFO"
	StatusReady     = "READY"
	StatusExecuted  = "EXECUTED"
	StatusFailed    = "EXECUTION_FAILED"
	StatusUnknown   = "UNKNOWN"
	StatusError     = "ERROR"
)

// Error codes
const (
	ErrorLLMTimeout      = "LLM_API_TIMEOUT"
	ErrorLLMFailed       = "LLM_API_FAILED"
	ErrorParseError      = "PARSE_ERROR"
	ErrorUnknownIntent   = "UNKNOWN_INTENT"
	ErrorStateConflict   = "STATE_CONFLICT"
	ErrorStateStore      = "STATE_STORE_FAILED"
	ErrorExecutionFailed = "EXECUTION_FAILED"
)

// IsEmpty reports whether a slot value carries no information
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case Slots:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	default:
		return false
	}
}

// Has reports whether key holds a non-empty value
func (s Slots) Has(key string) bool {
	v, ok := s[key]
	return ok && !IsEmpty(v)
}

// Keys returns the slot names sorted
func (s Slots) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
