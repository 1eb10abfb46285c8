package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// Step is one scripted oracle answer
type Step struct {
	Content string        // raw model output, decoded like a real answer
	Err     error         // returned instead of a response
	Delay   time.Duration // honoured against the context deadline
}

// Reply scripts a well-formed answer
func Reply(result models.ExtractionResult) Step {
	data, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("scripted reply: %v", err))
	}
	return Step{Content: string(data)}
}

// Raw scripts verbatim model output, including malformed JSON
func Raw(content string) Step {
	return Step{Content: content}
}

// Scripted is a deterministic Oracle replaying steps in order. Once the script
// runs out it answers "unknown" with zero confidence.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

func (s *Scripted) Extract(ctx context.Context, request *Request) (*Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, *request)
	var step Step
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	} else {
		step = Raw(`{"intent":"unknown","confidence":0}`)
	}
	s.mu.Unlock()

	if step.Delay > 0 {
		select {
		case <-time.After(step.Delay):
		case <-ctx.Done():
			return nil, classify(ctx, ctx.Err())
		}
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return Decode(step.Content), nil
}

// Requests returns every request seen so far
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}
