// test/mock/collaborators.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowgate/api/engine"
	"github.com/flowgate/api/ledger"
	"github.com/flowgate/api/model"
)

// MockIdentityProvider is a mock implementation of identity.Provider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) Resolve(ctx context.Context, userID string) (*model.IdentityProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IdentityProfile), args.Error(1)
}

func (m *MockIdentityProvider) ResolveByEmail(ctx context.Context, email string) (*model.IdentityProfile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.IdentityProfile), args.Error(1)
}

// MockLedgerClient is a mock implementation of ledger.Client
type MockLedgerClient struct {
	mock.Mock
}

func (m *MockLedgerClient) GetCost(ctx context.Context, chatflowID string) (float64, error) {
	args := m.Called(ctx, chatflowID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLedgerClient) GetBalance(ctx context.Context, userID string) (float64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLedgerClient) Deduct(ctx context.Context, userID string, amount float64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockLedgerClient) LogTransaction(ctx context.Context, tx ledger.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// MockEngineClient is a mock implementation of engine.Client
type MockEngineClient struct {
	mock.Mock
}

func (m *MockEngineClient) OpenStream(ctx context.Context, chatflowID, question string, sessionCtx engine.SessionContext) (engine.EventStream, error) {
	args := m.Called(ctx, chatflowID, question, sessionCtx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(engine.EventStream), args.Error(1)
}

// ScriptedEventStream replays a fixed sequence of frames and then a terminal
// error, usually io.EOF. It stands in for a live engine response in tests.
type ScriptedEventStream struct {
	Frames       []model.StreamEvent
	Terminal     error
	MalformedCnt int
	Closed       bool

	next int
}

func (s *ScriptedEventStream) Recv() (model.StreamEvent, error) {
	if s.next < len(s.Frames) {
		ev := s.Frames[s.next]
		s.next++
		return ev, nil
	}
	return model.StreamEvent{}, s.Terminal
}

func (s *ScriptedEventStream) Malformed() int {
	return s.MalformedCnt
}

func (s *ScriptedEventStream) Close() error {
	s.Closed = true
	return nil
}
