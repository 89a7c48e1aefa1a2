// service/reconciliation_service_test.go
package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/identity"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/test/mock"
	"github.com/flowgate/api/util"
)

type reconciliationFixture struct {
	service      *service.ReconciliationService
	accessStore  *mock.MockAccessStore
	shadowStore  *mock.MockShadowStore
	provider     *mock.MockIdentityProvider
	auditService *mock.MockAuditService
	cache        *mock.MockShadowCache
}

func newReconciliationFixture() *reconciliationFixture {
	f := &reconciliationFixture{
		accessStore:  &mock.MockAccessStore{},
		shadowStore:  &mock.MockShadowStore{},
		provider:     &mock.MockIdentityProvider{},
		auditService: &mock.MockAuditService{},
		cache:        &mock.MockShadowCache{},
	}
	f.service = service.NewReconciliationService(f.accessStore, f.shadowStore, f.provider,
		util.NewValidationUtil(), f.auditService, f.cache, util.NewEventBus(), util.NewNotificationService())
	return f
}

// seedRegistry sets up three records: one valid, one whose user is gone but
// has a shadow email, and one whose lookup fails outright.
func (f *reconciliationFixture) seedRegistry() {
	records := []model.AccessRecord{
		{ID: "rec-ok", UserID: "ext-ok", ChatflowID: "flow-1", IsActive: true},
		{ID: "rec-gone", UserID: "ext-gone", ChatflowID: "flow-1", IsActive: true},
		{ID: "rec-flaky", UserID: "ext-flaky", ChatflowID: "flow-2", IsActive: true},
	}
	f.accessStore.On("ListRecords", tmock.Anything, tmock.Anything).Return(records, nil)

	f.shadowStore.On("FindByID", tmock.Anything, "ext-ok").
		Return(&model.UserShadow{ID: "ext-ok", Email: "ok@example.com"}, nil)
	f.shadowStore.On("FindByID", tmock.Anything, "ext-gone").
		Return(&model.UserShadow{ID: "ext-gone", Email: "gone@example.com"}, nil)
	f.shadowStore.On("FindByID", tmock.Anything, "ext-flaky").
		Return(nil, echo_errors.ErrUserShadowNotFound)

	f.provider.On("Resolve", tmock.Anything, "ext-ok").
		Return(&model.IdentityProfile{ID: "ext-ok", Email: "ok@example.com"}, nil)
	f.provider.On("Resolve", tmock.Anything, "ext-gone").
		Return(nil, identity.ErrProfileNotFound)
	f.provider.On("Resolve", tmock.Anything, "ext-flaky").
		Return(nil, errors.New("identity provider returned status 503"))
}

func TestAudit_ClassifiesRecords(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	report, err := f.service.Audit(context.Background(), nil, false)

	assert.NoError(t, err)
	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 1, report.UserNotFound)
	assert.Equal(t, 1, report.ExternalAuthErrors)
	assert.Equal(t, 2, report.DistinctChatflows)
	// Valid records are excluded from findings unless asked for.
	assert.Len(t, report.Findings, 2)
	assert.NotEmpty(t, report.Recommendations)
}

func TestAudit_IncludeValid(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	report, err := f.service.Audit(context.Background(), nil, true)

	assert.NoError(t, err)
	assert.Len(t, report.Findings, 3)
}

func TestAudit_SuggestsReassignWhenShadowHasEmail(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	report, err := f.service.Audit(context.Background(), nil, false)
	assert.NoError(t, err)

	for _, finding := range report.Findings {
		if finding.Issue == model.IssueUserNotFound {
			assert.Equal(t, string(model.CleanupReassignByEmail), finding.SuggestedAction)
		}
	}
}

func TestCleanup_DryRunMakesNoWrites(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	report, err := f.service.Cleanup(context.Background(), model.CleanupDeactivateInvalid, nil, true, true)

	assert.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.Deactivated)
	f.accessStore.AssertNotCalled(t, "Deactivate", tmock.Anything, tmock.Anything)
	f.accessStore.AssertNotCalled(t, "Delete", tmock.Anything, tmock.Anything)
	f.accessStore.AssertNotCalled(t, "ReassignUserID", tmock.Anything, tmock.Anything, tmock.Anything)
	f.auditService.AssertNotCalled(t, "LogAction", tmock.Anything, tmock.Anything)
}

func TestCleanup_DryRunCountsMatchAudit(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	auditReport, err := f.service.Audit(context.Background(), nil, false)
	assert.NoError(t, err)

	cleanupReport, err := f.service.Cleanup(context.Background(), model.CleanupDeactivateInvalid, nil, true, true)
	assert.NoError(t, err)

	assert.Equal(t, auditReport.UserNotFound, cleanupReport.Deactivated)
	assert.Equal(t, auditReport.ExternalAuthErrors, cleanupReport.Failed)
}

func TestCleanup_DeactivateInvalid(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()
	f.accessStore.On("Deactivate", tmock.Anything, "rec-gone").Return(nil)
	f.auditService.On("LogAction", tmock.Anything, tmock.Anything).Return(nil)

	report, err := f.service.Cleanup(context.Background(), model.CleanupDeactivateInvalid, nil, false, true)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.Deactivated)
	assert.Equal(t, 1, report.Failed)
	f.accessStore.AssertCalled(t, "Deactivate", tmock.Anything, "rec-gone")
}

func TestCleanup_ReassignByEmail(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()

	fresh := &model.IdentityProfile{ID: "ext-fresh", Username: "gone", Email: "gone@example.com"}
	f.provider.On("ResolveByEmail", tmock.Anything, "gone@example.com").Return(fresh, nil)
	f.accessStore.On("ReassignUserID", tmock.Anything, "rec-gone", "ext-fresh").Return(nil)
	f.shadowStore.On("Upsert", tmock.Anything, tmock.Anything).
		Return(&model.UserShadow{ID: "ext-fresh", Email: "gone@example.com"}, nil)
	f.cache.On("SetUserShadow", tmock.Anything, tmock.Anything).Return(nil)
	f.auditService.On("LogAction", tmock.Anything, tmock.Anything).Return(nil)

	report, err := f.service.Cleanup(context.Background(), model.CleanupReassignByEmail, nil, false, true)

	assert.NoError(t, err)
	assert.Equal(t, 1, report.Reassigned)
	f.accessStore.AssertCalled(t, "ReassignUserID", tmock.Anything, "rec-gone", "ext-fresh")
}

func TestCleanup_WithoutForceAbortsOnLookupError(t *testing.T) {
	f := newReconciliationFixture()
	f.seedRegistry()
	// The repairable record precedes the flaky one, so its repair lands
	// before the abort.
	f.accessStore.On("Deactivate", tmock.Anything, "rec-gone").Return(nil)

	_, err := f.service.Cleanup(context.Background(), model.CleanupDeactivateInvalid, nil, false, false)

	assert.ErrorIs(t, err, echo_errors.ErrReconciliationLookup)
	f.auditService.AssertNotCalled(t, "LogAction", tmock.Anything, tmock.Anything)
}

func TestCleanup_InvalidAction(t *testing.T) {
	f := newReconciliationFixture()

	_, err := f.service.Cleanup(context.Background(), "purge_everything", nil, false, false)

	assert.ErrorIs(t, err, echo_errors.ErrInvalidCleanupAction)
	f.accessStore.AssertNotCalled(t, "ListRecords", tmock.Anything, tmock.Anything)
}
