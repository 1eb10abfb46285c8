package transport

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/hrbuddy-intent/internal/config"
	"github.com/avvvet/hrbuddy-intent/internal/logger"
	"github.com/avvvet/hrbuddy-intent/internal/models"
)

type blockingProcessor struct {
	calls   atomic.Int32
	release chan struct{}
}

func (p *blockingProcessor) ProcessTurn(ctx context.Context, request *models.TurnRequest) (*models.TurnResponse, error) {
	p.calls.Add(1)
	<-p.release
	return &models.TurnResponse{SessionID: request.SessionID, Status: models.StatusNeedsInfo}, nil
}

func turnMsg(t *testing.T) *nats.Msg {
	t.Helper()
	data, err := json.Marshal(models.TurnRequest{UserID: "emp-42", SessionID: "sess-1", Message: "apply leave"})
	require.NoError(t, err)
	// not bound to a subscription, so Respond fails and is only logged
	return &nats.Msg{Subject: "hr.intent.turn", Data: data}
}

func newTestTransport(t *testing.T, proc TurnProcessor) *NATSTransport {
	cfg := &config.Config{
		NatsTurnSubject: "hr.intent.turn",
		NatsQueueGroup:  "hrbuddy-intent",
		NatsTimeout:     time.Second,
		OracleTimeout:   time.Second,
	}
	return NewNATSTransport(nil, cfg, proc, logger.NewTestLogger(t))
}

func TestNATSTransport_CloseWaitsForInflightTurns(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	nt := newTestTransport(t, proc)

	for i := 0; i < 3; i++ {
		nt.dispatch(turnMsg(t))
	}
	require.Eventually(t, func() bool { return proc.calls.Load() == 3 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		assert.NoError(t, nt.Close())
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while turns were still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(proc.release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after turns finished")
	}
}

func TestNATSTransport_DropsTurnsAfterClose(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	close(proc.release)
	nt := newTestTransport(t, proc)

	require.NoError(t, nt.Close())
	nt.dispatch(turnMsg(t))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, proc.calls.Load())
}

func TestNATSTransport_DispatchRacingClose(t *testing.T) {
	proc := &blockingProcessor{release: make(chan struct{})}
	close(proc.release)
	nt := newTestTransport(t, proc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			nt.dispatch(turnMsg(t))
		}
	}()

	require.NoError(t, nt.Close())
	<-done
	// every accepted turn finished before Close returned; later ones were dropped
	accepted := proc.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, accepted, proc.calls.Load())
}
