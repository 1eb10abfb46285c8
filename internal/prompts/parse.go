package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// responseSchema only checks the types of the top-level keys; absent keys are defaulted
const responseSchema = `{
  "type": "object",
  "properties": {
    "intent":           {"type": "string"},
    "confidence":       {"type": "number"},
    "extracted_data":   {"type": ["object", "null"]},
    "missing_fields":   {"type": ["array", "null"], "items": {"type": "string"}},
    "next_question":    {"type": ["string", "null"]},
    "ready_to_execute": {"type": "boolean"}
  }
}`

var responseSchemaLoader = gojsonschema.NewStringLoader(responseSchema)

// ParseReport lists what had to be repaired in an oracle response
type ParseReport struct {
	Repaired  bool     // the JSON was truncated and closed before parsing
	Defaulted []string // top-level keys that were absent or had the wrong type
}

// ParseOracleResponse turns raw oracle output into an ExtractionResult. Missing or
// mistyped keys are defaulted; an error is returned only when no JSON object can be read.
func ParseOracleResponse(content string) (*models.ExtractionResult, ParseReport, error) {
	var report ParseReport

	jsonContent := extractJSON(content)
	if jsonContent == "" {
		return nil, report, fmt.Errorf("no valid JSON found in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(jsonContent), &raw); err != nil {
		repaired := closeTruncated(jsonContent)
		if repairErr := json.Unmarshal([]byte(repaired), &raw); repairErr != nil {
			return nil, report, fmt.Errorf("failed to parse JSON: %w", err)
		}
		report.Repaired = true
	}

	result, err := gojsonschema.Validate(responseSchemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, report, fmt.Errorf("failed to validate response: %w", err)
	}
	if !result.Valid() {
		for _, desc := range result.Errors() {
			field := strings.SplitN(desc.Field(), ".", 2)[0]
			if _, ok := raw[field]; ok {
				delete(raw, field)
			}
		}
	}

	response := &models.ExtractionResult{
		Intent:         models.IntentUnknown,
		ExtractedData:  models.Slots{},
		MissingFields:  []string{},
		ReadyToExecute: false,
	}

	if v, ok := raw["intent"].(string); ok && strings.TrimSpace(v) != "" {
		response.Intent = models.Intent(strings.ToLower(strings.TrimSpace(v)))
	} else {
		report.Defaulted = append(report.Defaulted, "intent")
	}

	if v, ok := raw["confidence"].(float64); ok {
		response.Confidence = clamp(v)
	} else {
		report.Defaulted = append(report.Defaulted, "confidence")
	}

	if v, ok := raw["extracted_data"].(map[string]any); ok {
		response.ExtractedData = models.Slots(v)
	} else {
		report.Defaulted = append(report.Defaulted, "extracted_data")
	}

	if v, ok := raw["missing_fields"].([]any); ok {
		for _, f := range v {
			if s, ok := f.(string); ok {
				response.MissingFields = append(response.MissingFields, s)
			}
		}
	} else {
		report.Defaulted = append(report.Defaulted, "missing_fields")
	}

	if v, ok := raw["next_question"].(string); ok && v != "" {
		response.NextQuestion = &v
	} else if _, present := raw["next_question"]; !present {
		report.Defaulted = append(report.Defaulted, "next_question")
	}

	if v, ok := raw["ready_to_execute"].(bool); ok {
		response.ReadyToExecute = v
	} else {
		report.Defaulted = append(report.Defaulted, "ready_to_execute")
	}

	return response, report, nil
}

// FallbackResult is what a turn carries when the oracle gave nothing usable
func FallbackResult() *models.ExtractionResult {
	q := FallbackMessage
	return &models.ExtractionResult{
		Intent:        models.IntentUnknown,
		ExtractedData: models.Slots{},
		MissingFields: []string{},
		NextQuestion:  &q,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func extractJSON(content string) string {
	// Look for JSON object in the content
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content, "}")
	if end == -1 || end <= start {
		// truncated output, let closeTruncated have a go
		return content[start:]
	}

	return content[start : end+1]
}

// closeTruncated closes an open string and any unbalanced objects or arrays. It is meant
// for output cut off by the token budget, and drops a dangling key or trailing comma.
func closeTruncated(s string) string {
	var (
		stack     []byte
		inString  bool
		escaped   bool
		expectKey bool
		sep       int
	)
	// keyCut is where to cut when the output stops inside a key or before its ':'.
	// sep is the '{' or ',' that opened the pending key.
	keyCut := -1

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
			if expectKey {
				keyCut = sep
				expectKey = false
			}
		case ':':
			keyCut = -1
		case ',':
			if len(stack) > 0 && stack[len(stack)-1] == '}' {
				expectKey, sep = true, i
			}
		case '{':
			stack = append(stack, '}')
			expectKey, sep = true, i
		case '[':
			stack = append(stack, ']')
			expectKey = false
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			expectKey = false
		}
	}

	if keyCut >= 0 {
		if s[keyCut] == '{' {
			keyCut++
		}
		s = s[:keyCut]
		inString = false
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}

	out := strings.TrimRight(b.String(), " \n\t")
	out = strings.TrimSuffix(out, ",")
	if strings.HasSuffix(out, ":") {
		out += "null"
	}

	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}
