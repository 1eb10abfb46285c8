package readiness

import (
	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// UnknownQuestion is asked when a turn carries no usable intent
const UnknownQuestion = "मुझे समझ नहीं आया। क्या आप स्पष्ट कर सकते हैं? I didn't understand. Could you please clarify what you want to do? (e.g., apply leave, mark attendance, check leave balance)"

// Evaluation is the readiness verdict for a slot map
type Evaluation struct {
	MissingFields  []string
	ReadyToExecute bool
	NextQuestion   *string
}

// Evaluator derives the next question from the schema; it never touches state
type Evaluator struct {
	registry *schema.Registry
}

func NewEvaluator(registry *schema.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate reports what intent still needs given slots
func (e *Evaluator) Evaluate(intent models.Intent, slots models.Slots) Evaluation {
	return e.EvaluateWithOptions(intent, slots, nil)
}

// EvaluateWithOptions is Evaluate with per-user option lists shown in the question
func (e *Evaluator) EvaluateWithOptions(intent models.Intent, slots models.Slots, options map[string][]string) Evaluation {
	if !e.registry.Known(intent) {
		q := UnknownQuestion
		return Evaluation{MissingFields: []string{}, NextQuestion: &q}
	}

	missing := e.registry.Missing(intent, slots)
	if len(missing) == 0 {
		return Evaluation{MissingFields: missing, ReadyToExecute: true}
	}

	spec, _ := e.registry.Slot(intent, missing[0])
	var opts []string
	if spec.OptionList != "" {
		opts = options[spec.OptionList]
	}
	q := spec.Prompt.Render(opts)
	return Evaluation{MissingFields: missing, NextQuestion: &q}
}
