package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/prompts"
)

var (
	// ErrOracleTimeout is returned when the oracle did not answer within the turn budget
	ErrOracleTimeout = errors.New("oracle timed out")
	// ErrOracleFailed wraps transport and provider failures
	ErrOracleFailed = errors.New("oracle call failed")
)

// Oracle proposes an intent and slot values for a single utterance
type Oracle interface {
	Extract(ctx context.Context, request *Request) (*Response, error)
}

// Request is what the oracle sees for one turn
type Request struct {
	Utterance   string
	PriorSlots  models.Slots
	OptionLists map[string][]string
	History     []llms.ChatMessage
	Now         time.Time
}

// Response is the oracle's reading after defaults were applied
type Response struct {
	Result *models.ExtractionResult
	Raw    string
	Report prompts.ParseReport
	// Malformed is set when no JSON object could be read; Result is then the fallback
	Malformed bool
}

// Decode parses raw oracle output; it never fails
func Decode(raw string) *Response {
	result, report, err := prompts.ParseOracleResponse(raw)
	if err != nil {
		return &Response{Result: prompts.FallbackResult(), Raw: raw, Malformed: true}
	}
	return &Response{Result: result, Raw: raw, Report: report}
}

// classify maps a provider error to one of the package sentinels
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrOracleTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrOracleFailed, err)
}
