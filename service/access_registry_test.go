// service/access_registry_test.go
package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/test/mock"
	"github.com/flowgate/api/util"
)

// inMemoryAccessStore implements the registry's upsert contract in memory:
// one record per (user, chatflow), grant is a three-way idempotent upsert,
// revoke is a soft delete and succeeds on a missing record.
type inMemoryAccessStore struct {
	records map[string]*model.AccessRecord
	nextID  int
}

func newInMemoryAccessStore() *inMemoryAccessStore {
	return &inMemoryAccessStore{records: map[string]*model.AccessRecord{}}
}

func (s *inMemoryAccessStore) key(userID, chatflowID string) string {
	return userID + "|" + chatflowID
}

func (s *inMemoryAccessStore) Grant(ctx context.Context, userID, chatflowID string) (*model.GrantResult, error) {
	record, ok := s.records[s.key(userID, chatflowID)]
	if !ok {
		s.nextID++
		record = &model.AccessRecord{
			ID:         fmt.Sprintf("rec-%d", s.nextID),
			UserID:     userID,
			ChatflowID: chatflowID,
			IsActive:   true,
		}
		s.records[s.key(userID, chatflowID)] = record
		return &model.GrantResult{Outcome: model.OutcomeGranted, RecordID: record.ID,
			UserID: userID, ChatflowID: chatflowID}, nil
	}
	outcome := model.OutcomeAlreadyGranted
	if !record.IsActive {
		outcome = model.OutcomeReactivated
	}
	record.IsActive = true
	return &model.GrantResult{Outcome: outcome, RecordID: record.ID,
		UserID: userID, ChatflowID: chatflowID}, nil
}

func (s *inMemoryAccessStore) Revoke(ctx context.Context, userID, chatflowID string) error {
	if record, ok := s.records[s.key(userID, chatflowID)]; ok {
		record.IsActive = false
	}
	return nil
}

func (s *inMemoryAccessStore) HasActiveAccess(ctx context.Context, userID, chatflowID string) (bool, error) {
	record, ok := s.records[s.key(userID, chatflowID)]
	return ok && record.IsActive, nil
}

func (s *inMemoryAccessStore) ListForChatflow(ctx context.Context, chatflowID string) ([]model.AccessEntry, error) {
	var entries []model.AccessEntry
	for _, record := range s.records {
		if record.ChatflowID == chatflowID {
			entries = append(entries, model.AccessEntry{Record: *record})
		}
	}
	return entries, nil
}

func (s *inMemoryAccessStore) ListRecords(ctx context.Context, chatflowIDs []string) ([]model.AccessRecord, error) {
	var records []model.AccessRecord
	for _, record := range s.records {
		records = append(records, *record)
	}
	return records, nil
}

func (s *inMemoryAccessStore) Deactivate(ctx context.Context, recordID string) error {
	for _, record := range s.records {
		if record.ID == recordID {
			record.IsActive = false
		}
	}
	return nil
}

func (s *inMemoryAccessStore) Delete(ctx context.Context, recordID string) error {
	for key, record := range s.records {
		if record.ID == recordID {
			delete(s.records, key)
		}
	}
	return nil
}

func (s *inMemoryAccessStore) ReassignUserID(ctx context.Context, recordID, newUserID string) error {
	for key, record := range s.records {
		if record.ID == recordID {
			delete(s.records, key)
			record.UserID = newUserID
			record.IsActive = true
			s.records[s.key(newUserID, record.ChatflowID)] = record
		}
	}
	return nil
}

var _ service.AccessStore = &inMemoryAccessStore{}

func newRegistryFixture(store *inMemoryAccessStore) *service.AccessService {
	provider := &mock.MockIdentityProvider{}
	shadowStore := &mock.MockShadowStore{}
	cache := &mock.MockShadowCache{}

	profile := &model.IdentityProfile{ID: "ext-1", Username: "ada", Email: "ada@example.com"}
	shadow := &model.UserShadow{ID: "ext-1", Username: "ada", Email: "ada@example.com"}
	provider.On("ResolveByEmail", tmock.Anything, "ada@example.com").Return(profile, nil)
	shadowStore.On("Upsert", tmock.Anything, tmock.Anything).Return(shadow, nil)
	cache.On("SetUserShadow", tmock.Anything, tmock.Anything).Return(nil)
	cache.On("GetUserShadowByEmail", tmock.Anything, "ada@example.com").Return(shadow, nil)

	return service.NewAccessService(store, shadowStore, provider,
		util.NewValidationUtil(), cache, util.NewEventBus(), util.NewNotificationService())
}

func TestGrantRevokeGrant_ReactivatesSingleRecord(t *testing.T) {
	store := newInMemoryAccessStore()
	accessService := newRegistryFixture(store)
	ctx := context.Background()

	first, err := accessService.GrantByEmail(ctx, "ada@example.com", "flow-1")
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeGranted, first.Outcome)

	repeat, err := accessService.GrantByEmail(ctx, "ada@example.com", "flow-1")
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeAlreadyGranted, repeat.Outcome)
	assert.Equal(t, first.RecordID, repeat.RecordID)

	assert.NoError(t, accessService.RevokeByEmail(ctx, "ada@example.com", "flow-1"))
	active, _ := store.HasActiveAccess(ctx, "ext-1", "flow-1")
	assert.False(t, active)

	again, err := accessService.GrantByEmail(ctx, "ada@example.com", "flow-1")
	assert.NoError(t, err)
	assert.Equal(t, model.OutcomeReactivated, again.Outcome)
	assert.Equal(t, first.RecordID, again.RecordID)

	assert.Len(t, store.records, 1)
	active, _ = store.HasActiveAccess(ctx, "ext-1", "flow-1")
	assert.True(t, active)
}

func TestRevoke_Idempotent(t *testing.T) {
	store := newInMemoryAccessStore()
	accessService := newRegistryFixture(store)
	ctx := context.Background()

	// Revoking access that was never granted succeeds.
	assert.NoError(t, accessService.RevokeByEmail(ctx, "ada@example.com", "flow-1"))
	assert.Empty(t, store.records)

	_, err := accessService.GrantByEmail(ctx, "ada@example.com", "flow-1")
	assert.NoError(t, err)

	assert.NoError(t, accessService.RevokeByEmail(ctx, "ada@example.com", "flow-1"))
	assert.NoError(t, accessService.RevokeByEmail(ctx, "ada@example.com", "flow-1"))

	assert.Len(t, store.records, 1)
	active, _ := store.HasActiveAccess(ctx, "ext-1", "flow-1")
	assert.False(t, active)
}
