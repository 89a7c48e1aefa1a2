// test/mock/services.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
)

// MockAccessService is a mock implementation of service.IAccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) GrantByEmail(ctx context.Context, email, chatflowID string) (*model.GrantResult, error) {
	args := m.Called(ctx, email, chatflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GrantResult), args.Error(1)
}

func (m *MockAccessService) RevokeByEmail(ctx context.Context, email, chatflowID string) error {
	args := m.Called(ctx, email, chatflowID)
	return args.Error(0)
}

func (m *MockAccessService) BulkGrantByEmail(ctx context.Context, emails []string, chatflowID string) []model.BulkGrantResult {
	args := m.Called(ctx, emails, chatflowID)
	return args.Get(0).([]model.BulkGrantResult)
}

func (m *MockAccessService) ListUsers(ctx context.Context, chatflowID string) ([]model.AccessEntry, error) {
	args := m.Called(ctx, chatflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessEntry), args.Error(1)
}

// MockReconciliationService is a mock implementation of service.IReconciliationService
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Audit(ctx context.Context, chatflowIDs []string, includeValid bool) (*model.AccessAuditReport, error) {
	args := m.Called(ctx, chatflowIDs, includeValid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccessAuditReport), args.Error(1)
}

func (m *MockReconciliationService) Cleanup(ctx context.Context, action model.CleanupAction, chatflowIDs []string, dryRun, force bool) (*model.CleanupReport, error) {
	args := m.Called(ctx, action, chatflowIDs, dryRun, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CleanupReport), args.Error(1)
}

// MockBillingService is a mock implementation of service.IBillingService
type MockBillingService struct {
	mock.Mock
}

func (m *MockBillingService) Reserve(ctx context.Context, userID, chatflowID string) (*service.Reservation, error) {
	args := m.Called(ctx, userID, chatflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Reservation), args.Error(1)
}

func (m *MockBillingService) Finalize(ctx context.Context, reservation *service.Reservation, success bool) {
	m.Called(ctx, reservation, success)
}

// MockSessionService is a mock implementation of service.ISessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) ResolveSessionID(userID, chatflowID, supplied string) string {
	args := m.Called(userID, chatflowID, supplied)
	return args.String(0)
}

func (m *MockSessionService) CommitTurn(ctx context.Context, turn model.ChatSession, question string, events []model.StreamEvent) error {
	args := m.Called(ctx, turn, question, events)
	return args.Error(0)
}

func (m *MockSessionService) GetHistory(ctx context.Context, userID, sessionID string) ([]model.DecodedMessage, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DecodedMessage), args.Error(1)
}

func (m *MockSessionService) ListSessions(ctx context.Context, userID string) ([]model.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChatSession), args.Error(1)
}

// MockRelayService is a mock implementation of service.IRelayService
type MockRelayService struct {
	mock.Mock
}

func (m *MockRelayService) StreamTurn(ctx context.Context, req service.TurnRequest, send func(model.StreamEvent) error) (*service.TurnResult, error) {
	args := m.Called(ctx, req, send)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TurnResult), args.Error(1)
}
