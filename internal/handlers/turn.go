package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/avvvet/hrbuddy-intent/internal/extract"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/memory"
	"github.com/avvvet/hrbuddy-intent/internal/merge"
	"github.com/avvvet/hrbuddy-intent/internal/metrics"
	"github.com/avvvet/hrbuddy-intent/internal/models"
	"github.com/avvvet/hrbuddy-intent/internal/options"
	"github.com/avvvet/hrbuddy-intent/internal/oracle"
	"github.com/avvvet/hrbuddy-intent/internal/prefilter"
	"github.com/avvvet/hrbuddy-intent/internal/prompts"
	"github.com/avvvet/hrbuddy-intent/internal/readiness"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// errNoIntent aborts a state update when the turn resolved to no intent
var errNoIntent = errors.New("no intent resolved")

// Executor performs a completed request
type Executor interface {
	Execute(ctx context.Context, request *models.ActionRequest) (*models.ActionResult, error)
}

// Deps wires a TurnHandler
type Deps struct {
	Registry *schema.Registry
	Oracle   oracle.Oracle
	Store    memory.Store
	History  *memory.Manager // optional
	Options  options.Source  // optional
	Executor Executor        // optional; without one READY is returned and state is kept
	Logger   logger.Logger
	Now      func() time.Time

	OracleTimeout        time.Duration
	MinConfidence        float64
	StickyLock           bool
	ResidualTextFallback bool
}

// TurnHandler runs one conversation turn end to end
type TurnHandler struct {
	registry      *schema.Registry
	oracle        oracle.Oracle
	store         memory.Store
	history       *memory.Manager
	options       options.Source
	executor      Executor
	prefilter     *prefilter.Prefilter
	fallback      *extract.Fallback
	evaluator     *readiness.Evaluator
	oracleTimeout time.Duration
	now           func() time.Time
	logger        logger.Logger
}

func NewTurnHandler(deps Deps) *TurnHandler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.OracleTimeout <= 0 {
		deps.OracleTimeout = 20 * time.Second
	}

	return &TurnHandler{
		registry: deps.Registry,
		oracle:   deps.Oracle,
		store:    deps.Store,
		history:  deps.History,
		options:  deps.Options,
		executor: deps.Executor,
		prefilter: prefilter.New(deps.Registry, prefilter.Options{
			StickyLock:    deps.StickyLock,
			MinConfidence: deps.MinConfidence,
		}),
		fallback: extract.NewFallback(deps.Registry,
			extract.ResidualTextPolicy{Enabled: deps.ResidualTextFallback},
			deps.Now),
		evaluator:     readiness.NewEvaluator(deps.Registry),
		oracleTimeout: deps.OracleTimeout,
		now:           deps.Now,
		logger:        deps.Logger,
	}
}

// turnOutcome is what one successful state update decided
type turnOutcome struct {
	decision prefilter.Decision
	fills    []extract.Fill
	dropped  []string
	changed  []string
}

// ProcessTurn never returns oracle or state problems as errors; they come back as an
// ERROR response carrying an error code.
func (h *TurnHandler) ProcessTurn(ctx context.Context, request *models.TurnRequest) (*models.TurnResponse, error) {
	if err := h.validateRequest(request); err != nil {
		return h.createErrorResponse(request, models.ErrorParseError, err.Error()), nil
	}

	key := memory.Key{UserID: request.UserID, SessionID: request.SessionID}
	log := h.logger.With(map[string]interface{}{
		"user_id":    request.UserID,
		"session_id": request.SessionID,
	})

	prior, err := h.store.Load(ctx, key)
	if errors.Is(err, memory.ErrNotFound) {
		prior = &models.ConversationState{Slots: models.Slots{}}
	} else if err != nil {
		log.Error("failed to load state", map[string]interface{}{"error": err.Error()})
		return h.createErrorResponse(request, models.ErrorStateStore, err.Error()), nil
	}

	optionLists := h.optionLists(ctx, request.UserID, log)

	answer, err := h.callOracle(ctx, key, request.Message, prior, optionLists, log)
	if err != nil {
		code := models.ErrorLLMFailed
		if errors.Is(err, oracle.ErrOracleTimeout) {
			code = models.ErrorLLMTimeout
		}
		log.Warn("oracle unavailable, asking to rephrase", map[string]interface{}{
			"error":      err.Error(),
			"error_code": code,
		})
		response := h.createErrorResponse(request, code, err.Error())
		h.record(ctx, key, request.Message, response, log)
		return response, nil
	}

	var outcome turnOutcome
	state, err := h.store.Update(ctx, key, func(state *models.ConversationState) error {
		o, err := h.applyTurn(state, request.Message, answer.Result, optionLists)
		outcome = o
		return err
	})

	switch {
	case errors.Is(err, errNoIntent):
		response := h.unknownResponse(request, answer)
		h.finish(ctx, key, request, response, outcome, log)
		return response, nil
	case errors.Is(err, memory.ErrStateConflict):
		log.Warn("state update kept conflicting", nil)
		response := h.createErrorResponse(request, models.ErrorStateConflict, "conversation was updated concurrently, please retry")
		h.finish(ctx, key, request, response, outcome, log)
		return response, nil
	case err != nil:
		log.Error("failed to update state", map[string]interface{}{"error": err.Error()})
		response := h.createErrorResponse(request, models.ErrorStateStore, err.Error())
		h.finish(ctx, key, request, response, outcome, log)
		return response, nil
	}

	intent := state.Locked()
	eval := h.evaluator.EvaluateWithOptions(intent, state.Slots, optionLists)

	response := &models.TurnResponse{
		SessionID:     request.SessionID,
		Intent:        intent,
		Slots:         state.Slots,
		MissingFields: eval.MissingFields,
	}

	if eval.ReadyToExecute {
		h.handoff(ctx, key, request, state, response, log)
	} else {
		response.Status = models.StatusNeedsInfo
		response.UserMessage = *eval.NextQuestion
	}

	h.finish(ctx, key, request, response, outcome, log)
	return response, nil
}

// applyTurn is the deterministic part of a turn; it may run more than once on conflicts
func (h *TurnHandler) applyTurn(state *models.ConversationState, utterance string, result *models.ExtractionResult, optionLists map[string][]string) (turnOutcome, error) {
	prevLock := state.Locked()

	decision := h.prefilter.Resolve(prefilter.Input{
		Locked:           prevLock,
		Utterance:        utterance,
		OracleIntent:     result.Intent,
		OracleConfidence: result.Confidence,
	})
	outcome := turnOutcome{decision: decision}

	if decision.Intent == models.IntentUnknown {
		return outcome, errNoIntent
	}

	continuation := prevLock != "" && !decision.NewLock
	state.Lock(decision.Intent)

	sanitized, dropped := extract.Sanitize(h.registry, decision.Intent, result.ExtractedData, optionLists)
	filled, fills := h.fallback.Apply(extract.Input{
		Intent:       decision.Intent,
		Utterance:    utterance,
		Prior:        state.Slots,
		Extracted:    sanitized,
		Options:      optionLists,
		Continuation: continuation,
	})

	merged := merge.Merge(state.Slots, filled)
	merged, outside := merge.Restrict(merged, func(key string) bool {
		return h.registry.Allowed(decision.Intent, key)
	})

	outcome.fills = fills
	outcome.dropped = append(dropped, outside...)
	outcome.changed = merge.Changed(state.Slots, merged)

	state.Slots = merged
	state.TurnCount++
	state.LastUpdated = h.now()
	return outcome, nil
}

func (h *TurnHandler) callOracle(ctx context.Context, key memory.Key, utterance string, prior *models.ConversationState, optionLists map[string][]string, log logger.Logger) (*oracle.Response, error) {
	var history []llms.ChatMessage
	if h.history != nil {
		msgs, err := h.history.ChatHistory(ctx, key)
		if err != nil {
			log.Warn("failed to load transcript", map[string]interface{}{"error": err.Error()})
		} else {
			history = msgs
		}
	}

	oracleCtx, cancel := context.WithTimeout(ctx, h.oracleTimeout)
	defer cancel()

	start := time.Now()
	answer, err := h.oracle.Extract(oracleCtx, &oracle.Request{
		Utterance:   utterance,
		PriorSlots:  prior.Slots.Clone(),
		OptionLists: optionLists,
		History:     history,
		Now:         h.now(),
	})
	metrics.OracleDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, oracle.ErrOracleTimeout):
		metrics.OracleCalls.WithLabelValues(metrics.OutcomeTimeout).Inc()
		return nil, err
	case err != nil:
		metrics.OracleCalls.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	case answer.Malformed:
		metrics.OracleCalls.WithLabelValues(metrics.OutcomeParse).Inc()
		log.Warn("oracle returned no usable JSON", map[string]interface{}{"raw": answer.Raw})
	default:
		metrics.OracleCalls.WithLabelValues(metrics.OutcomeOK).Inc()
	}
	return answer, nil
}

func (h *TurnHandler) optionLists(ctx context.Context, userID string, log logger.Logger) map[string][]string {
	if h.options == nil {
		return map[string][]string{}
	}
	lists, err := h.options.OptionLists(ctx, userID)
	if err != nil {
		log.Warn("failed to fetch option lists", map[string]interface{}{"error": err.Error()})
		return map[string][]string{}
	}
	return lists
}

// handoff passes a complete request to the executor and clears the conversation on
// either outcome, so a finished or failed action never leaks into the next request
func (h *TurnHandler) handoff(ctx context.Context, key memory.Key, request *models.TurnRequest, state *models.ConversationState, response *models.TurnResponse, log logger.Logger) {
	if h.executor == nil {
		response.Status = models.StatusReady
		response.UserMessage = readyMessage(state.Locked())
		return
	}

	result, err := h.executor.Execute(ctx, &models.ActionRequest{
		UserID:    request.UserID,
		SessionID: request.SessionID,
		Intent:    state.Locked(),
		Slots:     state.Slots,
	})

	switch {
	case err != nil:
		log.Error("execution failed", map[string]interface{}{"error": err.Error()})
		setError(response, models.StatusFailed, models.ErrorExecutionFailed, err.Error())
		response.UserMessage = executionFailedMessage
	case !result.Success:
		setError(response, models.StatusFailed, models.ErrorExecutionFailed, result.Message)
		response.UserMessage = result.Message
		if response.UserMessage == "" {
			response.UserMessage = executionFailedMessage
		}
	default:
		response.Status = models.StatusExecuted
		response.UserMessage = result.Message
		if response.UserMessage == "" {
			response.UserMessage = readyMessage(state.Locked())
		}
	}

	if err := h.store.Clear(ctx, key); err != nil {
		log.Error("failed to clear state after execution", map[string]interface{}{"error": err.Error()})
	}
}

func (h *TurnHandler) unknownResponse(request *models.TurnRequest, answer *oracle.Response) *models.TurnResponse {
	code := models.ErrorUnknownIntent
	message := readiness.UnknownQuestion
	if answer.Malformed {
		code = models.ErrorParseError
		message = prompts.FallbackMessage
	}

	response := &models.TurnResponse{
		SessionID:     request.SessionID,
		Intent:        models.IntentUnknown,
		Slots:         models.Slots{},
		MissingFields: []string{},
		UserMessage:   message,
	}
	setError(response, models.StatusUnknown, code, "no lock, keyword or confident oracle intent")
	return response
}

// finish records metrics, the transcript and a summary log line
func (h *TurnHandler) finish(ctx context.Context, key memory.Key, request *models.TurnRequest, response *models.TurnResponse, outcome turnOutcome, log logger.Logger) {
	metrics.TurnsTotal.WithLabelValues(string(response.Intent), response.Status).Inc()
	for _, f := range outcome.fills {
		metrics.FallbackFills.WithLabelValues(f.Extractor).Inc()
	}
	if outcome.decision.Overrode {
		metrics.IntentOverrides.WithLabelValues(string(outcome.decision.Source)).Inc()
	}

	h.record(ctx, key, request.Message, response, log)

	log.Info("turn processed", map[string]interface{}{
		"intent":         response.Intent,
		"status":         response.Status,
		"source":         outcome.decision.Source,
		"keyword":        outcome.decision.Keyword,
		"new_lock":       outcome.decision.NewLock,
		"changed":        outcome.changed,
		"fills":          fillNames(outcome.fills),
		"dropped":        outcome.dropped,
		"missing_fields": response.MissingFields,
	})
}

func (h *TurnHandler) record(ctx context.Context, key memory.Key, message string, response *models.TurnResponse, log logger.Logger) {
	if h.history == nil {
		return
	}
	if err := h.history.RecordTurn(ctx, key, message, response.UserMessage); err != nil {
		log.Warn("failed to record transcript", map[string]interface{}{"error": err.Error()})
	}
}

func (h *TurnHandler) validateRequest(request *models.TurnRequest) error {
	if request.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if request.SessionID == "" {
		return fmt.Errorf("session_id is required")
	}
	if request.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

func (h *TurnHandler) createErrorResponse(request *models.TurnRequest, errorCode, errorMessage string) *models.TurnResponse {
	response := &models.TurnResponse{
		SessionID:     request.SessionID,
		Intent:        models.IntentUnknown,
		Slots:         models.Slots{},
		MissingFields: []string{},
		UserMessage:   prompts.FallbackMessage,
	}
	setError(response, models.StatusError, errorCode, errorMessage)
	return response
}

func setError(response *models.TurnResponse, status, code, message string) {
	response.Status = status
	response.ErrorCode = &code
	response.ErrorMessage = &message
}

func fillNames(fills []extract.Fill) []string {
	out := make([]string, 0, len(fills))
	for _, f := range fills {
		out = append(out, f.Slot+"="+f.Extractor)
	}
	return out
}
