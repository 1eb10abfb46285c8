package extract

import (
	"strings"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// ResidualTextPolicy assigns the whole utterance to the last missing free-text slot.
//
// Known failure mode: a typo correction or an unrelated remark sent while the bot waits
// for a reason is captured as the reason. Asking for confirmation before committing is a
// product decision this package does not make.
type ResidualTextPolicy struct {
	Enabled bool
}

// ResidualInput is what the policy looks at for one turn
type ResidualInput struct {
	Intent       models.Intent
	Utterance    string
	Slots        models.Slots // prior slots merged with everything extracted this turn
	Contributed  bool         // the oracle produced a new value or a pattern extractor matched
	Continuation bool         // the intent was already locked before this turn
}

// Apply returns the slot and value to fill, if the policy fires
func (p ResidualTextPolicy) Apply(reg *schema.Registry, in ResidualInput) (string, string, bool) {
	if !p.Enabled || !in.Continuation || in.Contributed {
		return "", "", false
	}

	text := strings.TrimSpace(in.Utterance)
	if text == "" {
		return "", "", false
	}

	missing := reg.Missing(in.Intent, in.Slots)
	if len(missing) != 1 {
		return "", "", false
	}

	spec, ok := reg.Slot(in.Intent, missing[0])
	if !ok || spec.Kind != schema.KindText {
		return "", "", false
	}
	return spec.Name, text, true
}
