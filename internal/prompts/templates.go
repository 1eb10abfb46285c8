package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

const SystemPrompt = `You are the intent and slot extractor for an HR self-service assistant. Extract the user's intent and every field you can find as JSON. Handle typos, Hindi+English mixed text and shortcuts (SL/CL/EL). Return ONLY valid JSON.`

const UserPrompt = `MSG: "%s"%s
YEAR: %d
TODAY: %s
%s
TASK: Extract ALL fields in ONE pass. Do not ask for information that is already provided.

INTENTS (keywords - MATCH THESE FIRST):
%s
NEVER return intent "unknown" if the message contains one of the keywords above, even with typos.

RULES:
- Dates as YYYY-MM-DD. A single leave date sets both from_date and to_date.
- Times as HH:MM in 24h ("9am" -> "09:00", "6pm" -> "18:00").
- leave_type must be one of the available leave types.
- Only fill fields of the chosen intent. Use null for anything not mentioned.

OUTPUT (JSON only):
{
  "intent": "one_of_the_intents_or_unknown",
  "confidence": 0.0-1.0,
  "extracted_data": {"field": "value"},
  "missing_fields": ["required_fields_still_missing"],
  "next_question": "bilingual_hindi_and_english_question_or_null",
  "ready_to_execute": true_or_false
}

EXAMPLES:
"apply on duty today 9:20am to 1pm client meeting" -> {"intent":"apply_onduty","extracted_data":{"date":"%[4]s","from_time":"09:20","to_time":"13:00","reason":"client meeting"},"ready_to_execute":true}
"4 nov 2025 and sick leave" -> {"intent":"apply_leave","extracted_data":{"leave_type":"Sick Leave","from_date":"2025-11-04","to_date":"2025-11-04"},"missing_fields":["reason"],"ready_to_execute":false}
"punch in" -> {"intent":"mark_attendance","extracted_data":{"action":"check_in"},"ready_to_execute":true}`

const FallbackMessage = "मुझे समझ नहीं आया। I didn't understand. Could you rephrase?"

// OracleInput is what the prompt is built from
type OracleInput struct {
	Utterance   string
	PriorSlots  models.Slots
	OptionLists map[string][]string
	Now         time.Time
}

// BuildOraclePrompt renders the user prompt for one turn
func BuildOraclePrompt(registry *schema.Registry, in OracleInput) string {
	return fmt.Sprintf(UserPrompt,
		escapeQuotes(in.Utterance),
		buildContextSection(in.PriorSlots),
		in.Now.Year(),
		in.Now.Format(schema.DateLayout),
		buildOptionsSection(in.OptionLists),
		buildIntentsSection(registry),
	)
}

func buildContextSection(prior models.Slots) string {
	if len(prior) == 0 {
		return ""
	}
	data, err := json.Marshal(prior)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("\nPrevious conversation data: %s", data)
}

func buildOptionsSection(options map[string][]string) string {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	var builder strings.Builder
	for _, name := range names {
		values := options[name]
		list := "None available"
		if len(values) > 0 {
			list = strings.Join(values, ", ")
		}
		builder.WriteString(fmt.Sprintf("%s: %s\n", strings.ToUpper(name), list))
	}
	return builder.String()
}

func buildIntentsSection(registry *schema.Registry) string {
	var builder strings.Builder

	for _, s := range registry.Intents() {
		builder.WriteString(fmt.Sprintf("- %s (%s): keywords [%s]; requires [%s]\n",
			s.Intent,
			s.Description,
			strings.Join(s.Keywords, ", "),
			strings.Join(registry.RequiredSlots(s.Intent), ", ")))
	}

	return builder.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `'`)
}
