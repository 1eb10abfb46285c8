package prefilter

import (
	"github.com/avvvet/hrbuddy-intent/internal/extract"
	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// Source names the policy that decided a turn's intent
type Source string

const (
	SourceStickyLock Source = "sticky_lock"
	SourceKeyword    Source = "keyword"
	SourceOracle     Source = "oracle"
	SourceHeldLock   Source = "held_lock"
	SourceNone       Source = "none"
)

// Input is everything the pre-filter sees for one turn
type Input struct {
	Locked           models.Intent // empty when nothing is locked
	Utterance        string
	OracleIntent     models.Intent
	OracleConfidence float64
}

// Decision is the intent a turn resolves to and why
type Decision struct {
	Intent        models.Intent
	Source        Source
	KeywordIntent models.Intent
	Keyword       string
	// NewLock is set when Intent differs from the previous lock; the caller resets slots
	NewLock bool
	// Overrode is set when the oracle proposed a different intent and was ignored
	Overrode bool
}

// Policy is one named rule; the first policy that decides wins
type Policy struct {
	Name   Source
	Decide func(f *Prefilter, in Input, kw KeywordMatch) (models.Intent, bool)
}

// KeywordMatch is the highest-priority strong keyword found in an utterance, if any.
// Intents lists every intent with a keyword in the utterance, in priority order.
type KeywordMatch struct {
	Intent  models.Intent
	Phrase  string
	Intents []models.Intent
}

// Found reports whether a keyword matched
func (k KeywordMatch) Found() bool { return k.Intent != "" }

// Options toggles the heuristic policies
type Options struct {
	StickyLock    bool
	MinConfidence float64
}

// Prefilter decides whether a turn stays in the locked intent, follows a strong keyword,
// or accepts the oracle's reading. The oracle is always called; this runs on its answer.
type Prefilter struct {
	registry      *schema.Registry
	minConfidence float64
	policies      []Policy
	keywords      []intentKeywords
}

type intentKeywords struct {
	intent  models.Intent
	phrases []string
	tokens  [][]string
}

func New(registry *schema.Registry, opts Options) *Prefilter {
	f := &Prefilter{
		registry:      registry,
		minConfidence: opts.MinConfidence,
	}

	for _, s := range registry.Intents() {
		ik := intentKeywords{intent: s.Intent}
		for _, kw := range s.Keywords {
			toks := extract.Tokens(kw)
			if len(toks) == 0 {
				continue
			}
			ik.phrases = append(ik.phrases, kw)
			ik.tokens = append(ik.tokens, toks)
		}
		f.keywords = append(f.keywords, ik)
	}

	if opts.StickyLock {
		f.policies = append(f.policies, Policy{Name: SourceStickyLock, Decide: StickyLockPolicy})
	}
	f.policies = append(f.policies,
		Policy{Name: SourceKeyword, Decide: KeywordPolicy},
		Policy{Name: SourceOracle, Decide: OraclePolicy},
		Policy{Name: SourceHeldLock, Decide: HeldLockPolicy},
	)
	return f
}

// KeywordIntent returns the highest-priority intent whose strong keyword occurs in utterance
func (f *Prefilter) KeywordIntent(utterance string) (models.Intent, string, bool) {
	hit := f.match(utterance)
	return hit.Intent, hit.Phrase, hit.Found()
}

func (f *Prefilter) match(utterance string) KeywordMatch {
	var hit KeywordMatch
	tokens := extract.Tokens(utterance)
	for _, ik := range f.keywords {
		for i, phrase := range ik.tokens {
			if extract.PhraseIndex(tokens, phrase) < 0 {
				continue
			}
			if !hit.Found() {
				hit.Intent, hit.Phrase = ik.intent, ik.phrases[i]
			}
			hit.Intents = append(hit.Intents, ik.intent)
			break
		}
	}
	return hit
}

// Resolve runs the policies in order
func (f *Prefilter) Resolve(in Input) Decision {
	kw := f.match(in.Utterance)

	d := Decision{
		Intent:        models.IntentUnknown,
		Source:        SourceNone,
		KeywordIntent: kw.Intent,
		Keyword:       kw.Phrase,
	}

	for _, p := range f.policies {
		if intent, ok := p.Decide(f, in, kw); ok {
			d.Intent = intent
			d.Source = p.Name
			break
		}
	}

	d.NewLock = d.Intent != models.IntentUnknown && d.Intent != in.Locked
	d.Overrode = in.OracleIntent != "" && in.OracleIntent != d.Intent && d.Source != SourceOracle
	return d
}

// StickyLockPolicy keeps a sticky lock unless the turn names a different sticky intent
// anywhere, even behind a higher-priority keyword ("what is my leave balance").
// Short continuation replies ("9am to 6pm") stay in the flow whatever the oracle says.
func StickyLockPolicy(f *Prefilter, in Input, kw KeywordMatch) (models.Intent, bool) {
	if in.Locked == "" || !f.registry.IsSticky(in.Locked) {
		return "", false
	}
	for _, intent := range kw.Intents {
		if intent != in.Locked && f.registry.IsSticky(intent) {
			return "", false
		}
	}
	return in.Locked, true
}

// KeywordPolicy lets a strong keyword decide the intent, discarding a disagreeing oracle
func KeywordPolicy(f *Prefilter, in Input, kw KeywordMatch) (models.Intent, bool) {
	if !kw.Found() {
		return "", false
	}
	return kw.Intent, true
}

// OraclePolicy accepts a registered intent the oracle is confident about
func OraclePolicy(f *Prefilter, in Input, kw KeywordMatch) (models.Intent, bool) {
	if !f.registry.Known(in.OracleIntent) || in.OracleConfidence < f.minConfidence {
		return "", false
	}
	return in.OracleIntent, true
}

// HeldLockPolicy keeps any existing lock when nothing else decided; a lock is evidence
func HeldLockPolicy(f *Prefilter, in Input, kw KeywordMatch) (models.Intent, bool) {
	if in.Locked == "" || !f.registry.Known(in.Locked) {
		return "", false
	}
	return in.Locked, true
}
