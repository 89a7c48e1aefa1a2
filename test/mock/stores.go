// test/mock/stores.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/flowgate/api/model"
)

// MockAccessStore is a mock implementation of service.AccessStore
type MockAccessStore struct {
	mock.Mock
}

func (m *MockAccessStore) Grant(ctx context.Context, userID, chatflowID string) (*model.GrantResult, error) {
	args := m.Called(ctx, userID, chatflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.GrantResult), args.Error(1)
}

func (m *MockAccessStore) Revoke(ctx context.Context, userID, chatflowID string) error {
	args := m.Called(ctx, userID, chatflowID)
	return args.Error(0)
}

func (m *MockAccessStore) HasActiveAccess(ctx context.Context, userID, chatflowID string) (bool, error) {
	args := m.Called(ctx, userID, chatflowID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccessStore) ListForChatflow(ctx context.Context, chatflowID string) ([]model.AccessEntry, error) {
	args := m.Called(ctx, chatflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessEntry), args.Error(1)
}

func (m *MockAccessStore) ListRecords(ctx context.Context, chatflowIDs []string) ([]model.AccessRecord, error) {
	args := m.Called(ctx, chatflowIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccessRecord), args.Error(1)
}

func (m *MockAccessStore) Deactivate(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockAccessStore) Delete(ctx context.Context, recordID string) error {
	args := m.Called(ctx, recordID)
	return args.Error(0)
}

func (m *MockAccessStore) ReassignUserID(ctx context.Context, recordID, newUserID string) error {
	args := m.Called(ctx, recordID, newUserID)
	return args.Error(0)
}

// MockShadowStore is a mock implementation of service.ShadowStore
type MockShadowStore struct {
	mock.Mock
}

func (m *MockShadowStore) Upsert(ctx context.Context, shadow model.UserShadow) (*model.UserShadow, error) {
	args := m.Called(ctx, shadow)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserShadow), args.Error(1)
}

func (m *MockShadowStore) FindByEmail(ctx context.Context, email string) (*model.UserShadow, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserShadow), args.Error(1)
}

func (m *MockShadowStore) FindByID(ctx context.Context, id string) (*model.UserShadow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserShadow), args.Error(1)
}

// MockChatStore is a mock implementation of service.ChatStore
type MockChatStore struct {
	mock.Mock
}

func (m *MockChatStore) CommitTurn(ctx context.Context, turn model.ChatSession, question, answerContent string) error {
	args := m.Called(ctx, turn, question, answerContent)
	return args.Error(0)
}

func (m *MockChatStore) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChatSession), args.Error(1)
}

func (m *MockChatStore) ListSessionsForUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChatSession), args.Error(1)
}

func (m *MockChatStore) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChatMessage), args.Error(1)
}

// MockShadowCache is a mock implementation of service.ShadowCache
type MockShadowCache struct {
	mock.Mock
}

func (m *MockShadowCache) SetUserShadow(ctx context.Context, shadow model.UserShadow) error {
	args := m.Called(ctx, shadow)
	return args.Error(0)
}

func (m *MockShadowCache) GetUserShadowByEmail(ctx context.Context, email string) (*model.UserShadow, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.UserShadow), args.Error(1)
}

func (m *MockShadowCache) DeleteUserShadow(ctx context.Context, shadow model.UserShadow) error {
	args := m.Called(ctx, shadow)
	return args.Error(0)
}

// MockCostCache is a mock implementation of service.CostCache
type MockCostCache struct {
	mock.Mock
}

func (m *MockCostCache) SetChatflowCost(ctx context.Context, chatflowID string, cost float64) error {
	args := m.Called(ctx, chatflowID, cost)
	return args.Error(0)
}

func (m *MockCostCache) GetChatflowCost(ctx context.Context, chatflowID string) (float64, bool, error) {
	args := m.Called(ctx, chatflowID)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

// MockUserLocker is a mock implementation of service.UserLocker
type MockUserLocker struct {
	mock.Mock
}

func (m *MockUserLocker) Acquire(ctx context.Context, userID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, userID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserLocker) Release(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
