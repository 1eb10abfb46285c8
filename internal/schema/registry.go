package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// SlotKind tells the fallback extractors and validators what a slot holds
type SlotKind int

const (
	KindText SlotKind = iota
	KindDate
	KindRangeStart
	KindRangeEnd
	KindTimeStart
	KindTimeEnd
	KindChoice
	KindMonth
	KindYear
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Prompt is a slot question rendered in both configured languages
type Prompt struct {
	Hindi   string
	English string
}

// Render joins both languages, appending the available options when there are any
func (p Prompt) Render(options []string) string {
	text := strings.TrimSpace(p.Hindi + " " + p.English)
	if len(options) > 0 {
		text += "\n\nAvailable: " + strings.Join(options, ", ")
	}
	return text
}

// Choice is a fixed enum value with the phrases that select it
type Choice struct {
	Value   string
	Aliases []string
}

// DefaultFunc supplies a value for a slot the user is never asked about
type DefaultFunc func(now time.Time, utterance string) (any, bool)

// SlotSpec describes one required slot
type SlotSpec struct {
	Name       string
	Kind       SlotKind
	Prompt     Prompt
	OptionList string // name of a per-user option list, e.g. "leave_types"
	Choices    []Choice
	Default    DefaultFunc
}

// IntentSchema is the static definition of one intent
type IntentSchema struct {
	Intent      models.Intent
	Description string
	Sticky      bool
	Keywords    []string
	Slots       []SlotSpec
}

// Registry maps intents to their ordered required slots. It is immutable after construction.
type Registry struct {
	schemas  []IntentSchema
	byIntent map[models.Intent]int
}

// NewRegistry builds a registry; declaration order doubles as keyword priority
func NewRegistry(schemas ...IntentSchema) (*Registry, error) {
	r := &Registry{
		schemas:  make([]IntentSchema, 0, len(schemas)),
		byIntent: make(map[models.Intent]int, len(schemas)),
	}

	for _, s := range schemas {
		if s.Intent == "" || s.Intent == models.IntentUnknown {
			return nil, fmt.Errorf("invalid intent name %q", s.Intent)
		}
		if _, dup := r.byIntent[s.Intent]; dup {
			return nil, fmt.Errorf("duplicate intent %q", s.Intent)
		}

		seen := make(map[string]bool, len(s.Slots))
		for _, slot := range s.Slots {
			if slot.Name == "" {
				return nil, fmt.Errorf("intent %q has an unnamed slot", s.Intent)
			}
			if seen[slot.Name] {
				return nil, fmt.Errorf("intent %q declares slot %q twice", s.Intent, slot.Name)
			}
			seen[slot.Name] = true
		}

		r.byIntent[s.Intent] = len(r.schemas)
		r.schemas = append(r.schemas, s)
	}

	return r, nil
}

// Intents returns the schemas in declaration order
func (r *Registry) Intents() []IntentSchema {
	out := make([]IntentSchema, len(r.schemas))
	copy(out, r.schemas)
	return out
}

// Lookup returns the schema for intent
func (r *Registry) Lookup(intent models.Intent) (IntentSchema, bool) {
	idx, ok := r.byIntent[intent]
	if !ok {
		return IntentSchema{}, false
	}
	return r.schemas[idx], true
}

// Known reports whether intent is registered
func (r *Registry) Known(intent models.Intent) bool {
	_, ok := r.byIntent[intent]
	return ok
}

// IsSticky reports whether intent holds its lock across ambiguous turns
func (r *Registry) IsSticky(intent models.Intent) bool {
	s, ok := r.Lookup(intent)
	return ok && s.Sticky
}

// RequiredSlots returns the slot names of intent in the order they are asked
func (r *Registry) RequiredSlots(intent models.Intent) []string {
	s, ok := r.Lookup(intent)
	if !ok {
		return nil
	}
	names := make([]string, len(s.Slots))
	for i, slot := range s.Slots {
		names[i] = slot.Name
	}
	return names
}

// Slot returns the spec of a named slot of intent
func (r *Registry) Slot(intent models.Intent, name string) (SlotSpec, bool) {
	s, ok := r.Lookup(intent)
	if !ok {
		return SlotSpec{}, false
	}
	for _, slot := range s.Slots {
		if slot.Name == name {
			return slot, true
		}
	}
	return SlotSpec{}, false
}

// Allowed reports whether key may be written while intent is locked
func (r *Registry) Allowed(intent models.Intent, key string) bool {
	_, ok := r.Slot(intent, key)
	return ok
}

// Missing returns the required slots of intent not present in slots, in declared order
func (r *Registry) Missing(intent models.Intent, slots models.Slots) []string {
	missing := []string{}
	for _, name := range r.RequiredSlots(intent) {
		if !slots.Has(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// IsComplete reports whether every required slot of intent is present
func (r *Registry) IsComplete(intent models.Intent, slots models.Slots) bool {
	if !r.Known(intent) {
		return false
	}
	return len(r.Missing(intent, slots)) == 0
}

// Normalize validates a candidate value for the slot and returns its canonical form.
// options is the per-user option list for OptionList slots; an empty list accepts any text.
func (s SlotSpec) Normalize(v any, options []string) (any, bool) {
	if models.IsEmpty(v) {
		return nil, false
	}

	switch s.Kind {
	case KindDate, KindRangeStart, KindRangeEnd:
		str, ok := cleanString(v)
		if !ok {
			return nil, false
		}
		d, err := time.Parse(DateLayout, str)
		if err != nil {
			return nil, false
		}
		return d.Format(DateLayout), true

	case KindTimeStart, KindTimeEnd:
		str, ok := cleanString(v)
		if !ok {
			return nil, false
		}
		return normalizeClock(str)

	case KindChoice:
		str, ok := cleanString(v)
		if !ok {
			return nil, false
		}
		return s.matchChoice(str, options)

	case KindMonth:
		n, ok := toInt(v)
		if !ok || n < 1 || n > 12 {
			return nil, false
		}
		return n, true

	case KindYear:
		n, ok := toInt(v)
		if !ok || n < 2000 || n > 2100 {
			return nil, false
		}
		return n, true

	default:
		if m, ok := v.(map[string]any); ok {
			return m, len(m) > 0
		}
		return cleanString(v)
	}
}

func (s SlotSpec) matchChoice(str string, options []string) (any, bool) {
	lower := strings.ToLower(str)
	for _, c := range s.Choices {
		if strings.ToLower(c.Value) == lower {
			return c.Value, true
		}
		for _, alias := range c.Aliases {
			if strings.ToLower(alias) == lower {
				return c.Value, true
			}
		}
	}

	if s.OptionList == "" {
		return nil, false
	}
	if len(options) == 0 {
		return str, true
	}
	for _, opt := range options {
		if strings.ToLower(opt) == lower {
			return opt, true
		}
	}
	return nil, false
}

var nullWords = map[string]bool{
	"null": true, "none": true, "nil": true, "n/a": true, "undefined": true,
}

func cleanString(v any) (string, bool) {
	var str string
	switch t := v.(type) {
	case string:
		str = t
	case fmt.Stringer:
		str = t.String()
	default:
		return "", false
	}
	str = strings.TrimSpace(str)
	if str == "" || nullWords[strings.ToLower(str)] {
		return "", false
	}
	return str, true
}

func normalizeClock(str string) (any, bool) {
	parts := strings.Split(str, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return nil, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return nil, false
	}
	return fmt.Sprintf("%02d:%02d", h, m), true
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
