// service/relay_service_test.go
package service_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/test/mock"
	"github.com/flowgate/api/util"
)

type relayFixture struct {
	service        *service.RelayService
	accessStore    *mock.MockAccessStore
	billingService *mock.MockBillingService
	sessionService *mock.MockSessionService
	engineClient   *mock.MockEngineClient

	sent []model.StreamEvent
}

func newRelayFixture() *relayFixture {
	f := &relayFixture{
		accessStore:    &mock.MockAccessStore{},
		billingService: &mock.MockBillingService{},
		sessionService: &mock.MockSessionService{},
		engineClient:   &mock.MockEngineClient{},
	}
	f.service = service.NewRelayService(f.accessStore, f.billingService, f.sessionService,
		f.engineClient, util.NewValidationUtil())
	return f
}

func (f *relayFixture) send(ev model.StreamEvent) error {
	f.sent = append(f.sent, ev)
	return nil
}

func (f *relayFixture) sentKinds() []model.EventKind {
	kinds := make([]model.EventKind, 0, len(f.sent))
	for _, ev := range f.sent {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

var turnReq = service.TurnRequest{
	UserID:     "u1",
	ChatflowID: "flow-1",
	Question:   "what is up",
}

func TestStreamTurn_DeniedBeforeBilling(t *testing.T) {
	f := newRelayFixture()

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(false, nil)

	_, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.ErrorIs(t, err, echo_errors.ErrAccessDenied)
	assert.Empty(t, f.sent)
	f.billingService.AssertNotCalled(t, "Reserve", tmock.Anything, tmock.Anything, tmock.Anything)
	f.engineClient.AssertNotCalled(t, "OpenStream", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestStreamTurn_ReserveFailurePropagates(t *testing.T) {
	f := newRelayFixture()

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").
		Return(nil, echo_errors.ErrInsufficientCredits)

	_, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.ErrorIs(t, err, echo_errors.ErrInsufficientCredits)
	assert.Empty(t, f.sent)
	f.engineClient.AssertNotCalled(t, "OpenStream", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
}

func TestStreamTurn_EngineUnreachable(t *testing.T) {
	f := newRelayFixture()
	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").Return(reservation, nil)
	f.engineClient.On("OpenStream", tmock.Anything, "flow-1", "what is up", tmock.Anything).
		Return(nil, errors.New("connection refused"))
	f.billingService.On("Finalize", tmock.Anything, reservation, false).Return()

	_, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.ErrorIs(t, err, echo_errors.ErrUpstreamFailure)
	assert.Empty(t, f.sent)
	f.billingService.AssertCalled(t, "Finalize", tmock.Anything, reservation, false)
}

func TestStreamTurn_Success(t *testing.T) {
	f := newRelayFixture()
	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}
	stream := &mock.ScriptedEventStream{
		Frames: []model.StreamEvent{
			{Kind: model.EventToken, Data: "hel"},
			{Kind: model.EventToken, Data: "lo"},
			{Kind: model.EventMetadata, Data: `{"source":"kb"}`},
			{Kind: model.EventEnd},
		},
		Terminal: io.EOF,
	}

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").Return(reservation, nil)
	f.engineClient.On("OpenStream", tmock.Anything, "flow-1", "what is up", tmock.Anything).
		Return(stream, nil)
	f.sessionService.On("CommitTurn", tmock.Anything, tmock.Anything, "what is up", []model.StreamEvent{
		{Kind: model.EventToken, Data: "hello"},
		{Kind: model.EventMetadata, Data: `{"source":"kb"}`},
	}).Return(nil)
	f.billingService.On("Finalize", tmock.Anything, reservation, true).Return()

	result, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Equal(t, "sess-1", result.SessionID)
	assert.Equal(t, 5.0, result.Charged)
	// Session frame first, relayed frames live, relay-owned end frame last.
	assert.Equal(t, []model.EventKind{
		model.EventSession, model.EventToken, model.EventToken, model.EventMetadata, model.EventEnd,
	}, f.sentKinds())
	assert.Equal(t, "sess-1", f.sent[0].SessionID)
	assert.True(t, stream.Closed)
	f.sessionService.AssertExpectations(t)
}

func TestStreamTurn_EmptyStreamIsFailedTurn(t *testing.T) {
	f := newRelayFixture()
	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}
	stream := &mock.ScriptedEventStream{Terminal: io.EOF}

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").Return(reservation, nil)
	f.engineClient.On("OpenStream", tmock.Anything, "flow-1", "what is up", tmock.Anything).
		Return(stream, nil)
	f.billingService.On("Finalize", tmock.Anything, reservation, false).Return()

	result, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.NoError(t, err)
	assert.False(t, result.Committed)
	assert.Equal(t, []model.EventKind{
		model.EventSession, model.EventError, model.EventEnd,
	}, f.sentKinds())
	// No message pair is stored and the turn is recorded as failed.
	f.sessionService.AssertNotCalled(t, "CommitTurn", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything)
	f.billingService.AssertCalled(t, "Finalize", tmock.Anything, reservation, false)
}

func TestStreamTurn_MidStreamFailureKeepsPartialAnswer(t *testing.T) {
	f := newRelayFixture()
	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}
	stream := &mock.ScriptedEventStream{
		Frames:   []model.StreamEvent{{Kind: model.EventToken, Data: "partial"}},
		Terminal: errors.New("engine stream read failed: unexpected EOF"),
	}

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").Return(reservation, nil)
	f.engineClient.On("OpenStream", tmock.Anything, "flow-1", "what is up", tmock.Anything).
		Return(stream, nil)
	f.sessionService.On("CommitTurn", tmock.Anything, tmock.Anything, "what is up", []model.StreamEvent{
		{Kind: model.EventToken, Data: "partial"},
		{Kind: model.EventError, Data: echo_errors.ErrUpstreamFailure.Error()},
	}).Return(nil)
	f.billingService.On("Finalize", tmock.Anything, reservation, false).Return()

	result, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.NoError(t, err)
	assert.True(t, result.Committed)
	assert.Equal(t, []model.EventKind{
		model.EventSession, model.EventToken, model.EventError, model.EventEnd,
	}, f.sentKinds())
	f.billingService.AssertCalled(t, "Finalize", tmock.Anything, reservation, false)
}

func TestStreamTurn_CommitFailureStillLogsSuccess(t *testing.T) {
	f := newRelayFixture()
	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}
	stream := &mock.ScriptedEventStream{
		Frames:   []model.StreamEvent{{Kind: model.EventToken, Data: "answer"}},
		Terminal: io.EOF,
	}

	f.accessStore.On("HasActiveAccess", tmock.Anything, "u1", "flow-1").Return(true, nil)
	f.sessionService.On("ResolveSessionID", "u1", "flow-1", "").Return("sess-1")
	f.billingService.On("Reserve", tmock.Anything, "u1", "flow-1").Return(reservation, nil)
	f.engineClient.On("OpenStream", tmock.Anything, "flow-1", "what is up", tmock.Anything).
		Return(stream, nil)
	f.sessionService.On("CommitTurn", tmock.Anything, tmock.Anything, tmock.Anything, tmock.Anything).
		Return(echo_errors.ErrDatabaseOperation)
	f.billingService.On("Finalize", tmock.Anything, reservation, true).Return()

	result, err := f.service.StreamTurn(context.Background(), turnReq, f.send)

	assert.NoError(t, err)
	assert.False(t, result.Committed)
	// The answer already streamed; the ledger still records a delivered turn.
	f.billingService.AssertCalled(t, "Finalize", tmock.Anything, reservation, true)
}

func TestStreamTurn_InvalidQuestion(t *testing.T) {
	f := newRelayFixture()

	_, err := f.service.StreamTurn(context.Background(), service.TurnRequest{
		UserID: "u1", ChatflowID: "flow-1", Question: "   ",
	}, f.send)

	assert.ErrorIs(t, err, echo_errors.ErrInvalidChatData)
	f.accessStore.AssertNotCalled(t, "HasActiveAccess", tmock.Anything, tmock.Anything, tmock.Anything)
}
