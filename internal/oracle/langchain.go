package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/prompts"
	"github.com/avvvet/hrbuddy-intent/internal/schema"
)

// maxHistoryMessages bounds how much transcript goes into one prompt
const maxHistoryMessages = 6

// LangChainOracle calls a chat model through langchaingo
type LangChainOracle struct {
	model       llms.Model
	registry    *schema.Registry
	maxTokens   int
	temperature float64
	logger      logger.Logger
}

// Options tunes the generation call
type Options struct {
	MaxTokens   int
	Temperature float64
}

func NewLangChainOracle(model llms.Model, registry *schema.Registry, opts Options, log logger.Logger) *LangChainOracle {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2000
	}
	return &LangChainOracle{
		model:       model,
		registry:    registry,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      log,
	}
}

// NewModel builds the chat model selected by cfg.LLMProvider
func NewModel(cfg *config.Config) (llms.Model, error) {
	switch cfg.LLMProvider {
	case config.ProviderAnthropic:
		llm, err := anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.AnthropicModel),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}
		return llm, nil
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OpenAIModel),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return llm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func (o *LangChainOracle) Extract(ctx context.Context, request *Request) (*Response, error) {
	now := request.Now
	if now.IsZero() {
		now = time.Now()
	}

	prompt := prompts.BuildOraclePrompt(o.registry, prompts.OracleInput{
		Utterance:   request.Utterance,
		PriorSlots:  request.PriorSlots,
		OptionLists: request.OptionLists,
		Now:         now,
	})

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompts.SystemPrompt),
	}
	for _, msg := range recent(request.History) {
		switch msg.GetType() {
		case llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI:
			messages = append(messages, llms.TextParts(msg.GetType(), msg.GetContent()))
		}
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	start := time.Now()
	resp, err := o.model.GenerateContent(ctx, messages,
		llms.WithMaxTokens(o.maxTokens),
		llms.WithTemperature(o.temperature),
		llms.WithJSONMode(),
	)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrOracleFailed)
	}

	content := resp.Choices[0].Content
	out := Decode(content)

	o.logger.Debug("oracle answered", map[string]interface{}{
		"duration_ms": time.Since(start).Milliseconds(),
		"stop_reason": resp.Choices[0].StopReason,
		"intent":      out.Result.Intent,
		"confidence":  out.Result.Confidence,
		"repaired":    out.Report.Repaired,
		"malformed":   out.Malformed,
	})
	if len(out.Report.Defaulted) > 0 {
		o.logger.Warn("oracle response missing fields", map[string]interface{}{
			"defaulted": out.Report.Defaulted,
		})
	}

	return out, nil
}

// recent keeps the tail of the transcript, starting on a human turn
func recent(history []llms.ChatMessage) []llms.ChatMessage {
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for len(history) > 0 && history[0].GetType() != llms.ChatMessageTypeHuman {
		history = history[1:]
	}
	return history
}
