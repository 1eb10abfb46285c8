package extract

import (
	"reflect"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// Extractor names reported in Fill
const (
	ByDate     = "date"
	ByRange    = "date_range"
	ByTime     = "time_range"
	ByChoice   = "choice"
	ByOption   = "option_match"
	ByMonth    = "month"
	ByYear     = "year"
	ByDefault  = "default"
	ByResidual = "residual_text"
)

// Fill records a slot a deterministic extractor filled
type Fill struct {
	Slot      string
	Extractor string
}

// Input is one turn's view for the fallback tier
type Input struct {
	Intent       models.Intent
	Utterance    string
	Prior        models.Slots
	Extracted    models.Slots // oracle output after Sanitize
	Options      map[string][]string
	Continuation bool
}

// Fallback runs the pattern extractors, defaults and the residual-text policy over a turn.
// It only adds keys; a slot already present in Prior or Extracted is never touched.
type Fallback struct {
	registry *schema.Registry
	residual ResidualTextPolicy
	now      func() time.Time
}

func NewFallback(registry *schema.Registry, residual ResidualTextPolicy, now func() time.Time) *Fallback {
	if now == nil {
		now = time.Now
	}
	return &Fallback{registry: registry, residual: residual, now: now}
}

// Apply returns Extracted plus whatever the fallbacks recovered
func (f *Fallback) Apply(in Input) (models.Slots, []Fill) {
	out := in.Extracted.Clone()
	var fills []Fill

	spec, ok := f.registry.Lookup(in.Intent)
	if !ok {
		return out, nil
	}

	now := f.now()
	have := func(name string) bool {
		return in.Prior.Has(name) || out.Has(name)
	}
	set := func(name string, v any, by string) {
		if have(name) {
			return
		}
		out[name] = v
		fills = append(fills, Fill{Slot: name, Extractor: by})
	}

	var (
		rangeDone bool
		timeDone  bool
	)

	for _, slot := range spec.Slots {
		if have(slot.Name) {
			continue
		}

		switch slot.Kind {
		case schema.KindDate:
			if dates := FindDates(in.Utterance, now); len(dates) > 0 {
				set(slot.Name, dates[0].Date.Format(schema.DateLayout), ByDate)
			}

		case schema.KindRangeStart, schema.KindRangeEnd:
			if rangeDone {
				continue
			}
			rangeDone = true
			from, to, ok := FindDateRange(in.Utterance, now)
			if !ok {
				continue
			}
			for _, s := range spec.Slots {
				switch s.Kind {
				case schema.KindRangeStart:
					set(s.Name, from.Format(schema.DateLayout), ByRange)
				case schema.KindRangeEnd:
					set(s.Name, to.Format(schema.DateLayout), ByRange)
				}
			}

		case schema.KindTimeStart, schema.KindTimeEnd:
			if timeDone {
				continue
			}
			timeDone = true
			tr, ok := FindTimeRange(in.Utterance)
			if !ok {
				continue
			}
			for _, s := range spec.Slots {
				switch s.Kind {
				case schema.KindTimeStart:
					set(s.Name, tr.From, ByTime)
				case schema.KindTimeEnd:
					set(s.Name, tr.To, ByTime)
				}
			}

		case schema.KindChoice:
			if len(slot.Choices) > 0 {
				if v, ok := MatchChoice(slot, in.Utterance); ok {
					set(slot.Name, v, ByChoice)
					continue
				}
			}
			if slot.OptionList != "" {
				if v, _, ok := MatchOption(in.Utterance, in.Options[slot.OptionList]); ok {
					set(slot.Name, v, ByOption)
				}
			}

		case schema.KindMonth:
			if m, ok := FindMonth(in.Utterance); ok {
				set(slot.Name, int(m), ByMonth)
			}

		case schema.KindYear:
			if y, ok := FindYear(in.Utterance); ok {
				set(slot.Name, y, ByYear)
			}
		}
	}

	// a recognised date or time range counts even when it only repeats a filled slot
	contributed := len(fills) > 0 || patternMatched(spec, in.Utterance, now)
	for k, v := range in.Extracted {
		if !reflect.DeepEqual(in.Prior[k], v) {
			contributed = true
			break
		}
	}

	for _, slot := range spec.Slots {
		if slot.Default == nil || have(slot.Name) {
			continue
		}
		if v, ok := slot.Default(now, Normalize(in.Utterance)); ok {
			set(slot.Name, v, ByDefault)
		}
	}

	merged := in.Prior.Clone()
	for k, v := range out {
		merged[k] = v
	}
	if name, text, ok := f.residual.Apply(f.registry, ResidualInput{
		Intent:       in.Intent,
		Utterance:    in.Utterance,
		Slots:        merged,
		Contributed:  contributed,
		Continuation: in.Continuation,
	}); ok {
		set(name, text, ByResidual)
	}

	return out, fills
}

func patternMatched(spec schema.IntentSchema, utterance string, now time.Time) bool {
	for _, slot := range spec.Slots {
		switch slot.Kind {
		case schema.KindDate:
			if len(FindDates(utterance, now)) > 0 {
				return true
			}
		case schema.KindRangeStart, schema.KindRangeEnd:
			if _, _, ok := FindDateRange(utterance, now); ok {
				return true
			}
		case schema.KindTimeStart, schema.KindTimeEnd:
			if _, ok := FindTimeRange(utterance); ok {
				return true
			}
		}
	}
	return false
}

// Sanitize keeps only slots of intent with valid values, canonicalising them.
// Option-list values that miss an exact match get a fuzzy second chance.
func Sanitize(registry *schema.Registry, intent models.Intent, slots models.Slots, options map[string][]string) (models.Slots, []string) {
	out := models.Slots{}
	var dropped []string

	for key, raw := range slots {
		spec, ok := registry.Slot(intent, key)
		if !ok {
			dropped = append(dropped, key)
			continue
		}

		opts := options[spec.OptionList]
		if v, ok := spec.Normalize(raw, opts); ok {
			out[key] = v
			continue
		}

		if spec.OptionList != "" {
			if str, isStr := raw.(string); isStr {
				if v, _, ok := MatchOption(str, opts); ok {
					out[key] = v
					continue
				}
			}
		}

		if !models.IsEmpty(raw) {
			dropped = append(dropped, key)
		}
	}

	return out, dropped
}
