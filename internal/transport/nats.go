package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

// TurnProcessor handles one conversation turn
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, request *models.TurnRequest) (*models.TurnResponse, error)
}

// Connect opens a NATS connection that reconnects forever
func Connect(cfg *config.Config, log logger.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", map[string]interface{}{"url": c.ConnectedUrl()})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("connected to NATS server", map[string]interface{}{"url": cfg.NatsURL})
	return conn, nil
}

// NATSTransport serves turns over NATS request/reply. Each message is handled on its
// own goroutine; the state store serializes turns of the same conversation.
type NATSTransport struct {
	conn        *nats.Conn
	subject     string
	queue       string
	turnTimeout time.Duration
	handler     TurnProcessor
	logger      logger.Logger

	sub      *nats.Subscription
	inflight sync.WaitGroup
	mu       sync.Mutex
	closed   bool // guards inflight.Add against Close's Wait
}

// drainPollInterval and drainTimeout bound how long Close waits for the subscription
// to stop delivering
const (
	drainPollInterval = 10 * time.Millisecond
	drainTimeout      = 30 * time.Second
)

func NewNATSTransport(conn *nats.Conn, cfg *config.Config, handler TurnProcessor, log logger.Logger) *NATSTransport {
	// the oracle budget plus room for state I/O and execution
	turnTimeout := cfg.OracleTimeout + cfg.NatsTimeout

	return &NATSTransport{
		conn:        conn,
		subject:     cfg.NatsTurnSubject,
		queue:       cfg.NatsQueueGroup,
		turnTimeout: turnTimeout,
		handler:     handler,
		logger:      log,
	}
}

func (nt *NATSTransport) Start() error {
	sub, err := nt.conn.QueueSubscribe(nt.subject, nt.queue, nt.dispatch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", nt.subject, err)
	}
	nt.sub = sub

	nt.logger.Info("subscribed to subject", map[string]interface{}{
		"subject": nt.subject,
		"queue":   nt.queue,
	})
	return nil
}

// dispatch runs a turn on its own goroutine; messages arriving after Close are dropped
func (nt *NATSTransport) dispatch(msg *nats.Msg) {
	nt.mu.Lock()
	if nt.closed {
		nt.mu.Unlock()
		nt.logger.Debug("transport closed, dropping turn", map[string]interface{}{"subject": msg.Subject})
		return
	}
	nt.inflight.Add(1)
	nt.mu.Unlock()

	go func() {
		defer nt.inflight.Done()
		nt.handleTurnRequest(msg)
	}()
}

func (nt *NATSTransport) handleTurnRequest(msg *nats.Msg) {
	var request models.TurnRequest
	if err := json.Unmarshal(msg.Data, &request); err != nil {
		nt.logger.Warn("invalid turn request", map[string]interface{}{"error": err.Error()})
		nt.sendErrorResponse(msg, &request, models.ErrorParseError, "Invalid request format")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), nt.turnTimeout)
	defer cancel()

	response, err := nt.handler.ProcessTurn(ctx, &request)
	if err != nil {
		nt.logger.Error("error processing turn", map[string]interface{}{
			"session_id": request.SessionID,
			"error":      err.Error(),
		})
		nt.sendErrorResponse(msg, &request, models.ErrorLLMFailed, err.Error())
		return
	}

	if err := nt.sendResponse(msg, response); err != nil {
		nt.logger.Error("error sending response", map[string]interface{}{"error": err.Error()})
	}
}

func (nt *NATSTransport) sendResponse(msg *nats.Msg, response *models.TurnResponse) error {
	responseData, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal response: %w", err)
	}

	if err := msg.Respond(responseData); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}

	nt.logger.Debug("response sent", map[string]interface{}{
		"session_id": response.SessionID,
		"status":     response.Status,
	})
	return nil
}

func (nt *NATSTransport) sendErrorResponse(msg *nats.Msg, request *models.TurnRequest, errorCode, errorMessage string) {
	response := &models.TurnResponse{
		SessionID:     request.SessionID,
		Intent:        models.IntentUnknown,
		Status:        models.StatusError,
		Slots:         models.Slots{},
		MissingFields: []string{},
		UserMessage:   "I'm sorry, I encountered an error processing your request. Please try again.",
		ErrorCode:     &errorCode,
		ErrorMessage:  &errorMessage,
	}

	if err := nt.sendResponse(msg, response); err != nil {
		nt.logger.Error("failed to send error response", map[string]interface{}{"error": err.Error()})
	}
}

// Close drains the subscription, waits until it stops delivering, then waits for
// in-flight turns
func (nt *NATSTransport) Close() error {
	if nt.sub != nil {
		if err := nt.sub.Drain(); err != nil {
			nt.logger.Warn("failed to drain subscription", map[string]interface{}{"error": err.Error()})
		}
		deadline := time.Now().Add(drainTimeout)
		for nt.sub.IsValid() && time.Now().Before(deadline) {
			time.Sleep(drainPollInterval)
		}
	}

	nt.mu.Lock()
	nt.closed = true
	nt.mu.Unlock()

	nt.inflight.Wait()
	return nil
}
