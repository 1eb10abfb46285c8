package transport

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// NATSExecutor hands completed requests to the HR backend over NATS request/reply
type NATSExecutor struct {
	conn    *nats.Conn
	subject string
}

func NewNATSExecutor(conn *nats.Conn, subject string) *NATSExecutor {
	return &NATSExecutor{conn: conn, subject: subject}
}

func (e *NATSExecutor) Execute(ctx context.Context, request *models.ActionRequest) (*models.ActionResult, error) {
	var result models.ActionResult
	if err := requestJSON(ctx, e.conn, e.subject, request, &result); err != nil {
		return nil, fmt.Errorf("execute %s: %w", request.Intent, err)
	}
	return &result, nil
}

type optionsRequest struct {
	UserID string `json:"user_id"`
}

type optionsReply struct {
	Lists map[string][]string `json:"lists"`
	Error string              `json:"error,omitempty"`
}

// NATSOptionSource asks the HR backend for a user's option lists
type NATSOptionSource struct {
	conn    *nats.Conn
	subject string
}

func NewNATSOptionSource(conn *nats.Conn, subject string) *NATSOptionSource {
	return &NATSOptionSource{conn: conn, subject: subject}
}

func (s *NATSOptionSource) OptionLists(ctx context.Context, userID string) (map[string][]string, error) {
	var reply optionsReply
	if err := requestJSON(ctx, s.conn, s.subject, optionsRequest{UserID: userID}, &reply); err != nil {
		return nil, fmt.Errorf("fetch option lists: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("fetch option lists: %s", reply.Error)
	}
	if reply.Lists == nil {
		reply.Lists = map[string][]string{}
	}
	return reply.Lists, nil
}

func requestJSON(ctx context.Context, conn *nats.Conn, subject string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", subject, err)
	}

	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("failed to parse reply from %s: %w", subject, err)
	}
	return nil
}
