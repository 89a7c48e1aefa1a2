// service/reconciliation_service.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate/api/audit"
	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/identity"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/util"
	helper_util "github.com/flowgate/api/util/helper"
)

type IReconciliationService interface {
	Audit(ctx context.Context, chatflowIDs []string, includeValid bool) (*model.AccessAuditReport, error)
	Cleanup(ctx context.Context, action model.CleanupAction, chatflowIDs []string, dryRun, force bool) (*model.CleanupReport, error)
}

// ReconciliationService detects and repairs drift between the access registry
// and the identity provider. Nothing enforces that a stored user id still
// exists upstream; the provider can delete a user or recreate the same person
// under a fresh id at any time.
type ReconciliationService struct {
	accessStore         AccessStore
	shadowStore         ShadowStore
	identityProvider    identity.Provider
	validationUtil      *util.ValidationUtil
	auditService        audit.Service
	cacheService        ShadowCache
	eventBus            *util.EventBus
	notificationService *util.NotificationService
}

var _ IReconciliationService = &ReconciliationService{}

func NewReconciliationService(accessStore AccessStore,
	shadowStore ShadowStore,
	identityProvider identity.Provider,
	validationUtil *util.ValidationUtil,
	auditService audit.Service,
	cacheService ShadowCache,
	eventBus *util.EventBus,
	notificationService *util.NotificationService) *ReconciliationService {

	return &ReconciliationService{
		accessStore:         accessStore,
		shadowStore:         shadowStore,
		identityProvider:    identityProvider,
		validationUtil:      validationUtil,
		auditService:        auditService,
		cacheService:        cacheService,
		eventBus:            eventBus,
		notificationService: notificationService,
	}
}

// classify checks one record against the identity provider. A lookup that
// fails for transport or server reasons is kept apart from a definitive
// "no such user": the first wants a retry, the second wants a repair.
func (s *ReconciliationService) classify(ctx context.Context, record model.AccessRecord) model.AuditFinding {
	finding := model.AuditFinding{Record: record}

	if shadow, err := s.shadowStore.FindByID(ctx, record.UserID); err == nil {
		finding.Shadow = shadow
	} else if !errors.Is(err, echo_errors.ErrUserShadowNotFound) {
		logger.Warn("Shadow lookup failed during audit",
			zap.Error(err),
			zap.String("userID", record.UserID))
	}

	_, err := s.identityProvider.Resolve(ctx, record.UserID)
	switch {
	case err == nil:
		finding.Issue = model.IssueValid
	case errors.Is(err, identity.ErrProfileNotFound):
		finding.Issue = model.IssueUserNotFound
		finding.Detail = "user id no longer known to the identity provider"
		if finding.Shadow != nil && finding.Shadow.Email != "" {
			finding.SuggestedAction = string(model.CleanupReassignByEmail)
		} else {
			finding.SuggestedAction = string(model.CleanupDeactivateInvalid)
		}
	default:
		finding.Issue = model.IssueExternalAuthError
		finding.Detail = err.Error()
		finding.SuggestedAction = "retry audit once the identity provider recovers"
	}
	return finding
}

// resolveRecord re-resolves a record's user, first by the stored id and then
// by the shadow's email. The email fallback is what lets reassign_by_email
// follow a user across an id change.
func (s *ReconciliationService) resolveRecord(ctx context.Context, finding model.AuditFinding) model.Resolution {
	profile, err := s.identityProvider.Resolve(ctx, finding.Record.UserID)
	if err == nil {
		return model.Resolution{Kind: model.ResolvedByID, Profile: profile}
	}
	if !errors.Is(err, identity.ErrProfileNotFound) {
		return model.Resolution{Kind: model.ResolutionFailed, Detail: err.Error()}
	}

	if finding.Shadow == nil || finding.Shadow.Email == "" {
		return model.Resolution{
			Kind:   model.ResolutionFailed,
			Detail: "no shadow email to fall back on",
		}
	}

	profile, err = s.identityProvider.ResolveByEmail(ctx, finding.Shadow.Email)
	switch {
	case err == nil:
		return model.Resolution{Kind: model.ResolvedByEmail, Profile: profile}
	case errors.Is(err, identity.ErrProfileNotFound):
		return model.Resolution{
			Kind:   model.ResolutionFailed,
			Detail: fmt.Sprintf("neither user id nor email %s known to the identity provider", finding.Shadow.Email),
		}
	default:
		return model.Resolution{Kind: model.ResolutionFailed, Detail: err.Error()}
	}
}

// Audit classifies every access record without touching any of them.
// Findings are computed fresh per call and never persisted.
func (s *ReconciliationService) Audit(ctx context.Context, chatflowIDs []string, includeValid bool) (*model.AccessAuditReport, error) {
	start := time.Now()
	logger.Info("Starting access audit",
		zap.Strings("chatflowIDs", chatflowIDs),
		zap.Bool("includeValid", includeValid))

	records, err := s.accessStore.ListRecords(ctx, chatflowIDs)
	if err != nil {
		return nil, err
	}

	report := &model.AccessAuditReport{TotalRecords: len(records)}
	chatflows := make(map[string]struct{})
	for _, record := range records {
		chatflows[record.ChatflowID] = struct{}{}

		finding := s.classify(ctx, record)
		switch finding.Issue {
		case model.IssueValid:
			report.Valid++
			if includeValid {
				report.Findings = append(report.Findings, finding)
			}
		case model.IssueUserNotFound:
			report.UserNotFound++
			report.Findings = append(report.Findings, finding)
		case model.IssueExternalAuthError:
			report.ExternalAuthErrors++
			report.Findings = append(report.Findings, finding)
		}
	}
	report.DistinctChatflows = len(chatflows)

	if report.UserNotFound > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d record(s) point at users the identity provider no longer knows; run cleanup with reassign_by_email or deactivate_invalid", report.UserNotFound))
	}
	if report.ExternalAuthErrors > 0 {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("%d lookup(s) failed; re-run the audit before acting on these records", report.ExternalAuthErrors))
	}
	if report.UserNotFound == 0 && report.ExternalAuthErrors == 0 {
		report.Recommendations = append(report.Recommendations, "registry is consistent, no action needed")
	}

	logger.Info("Access audit finished",
		zap.Int("totalRecords", report.TotalRecords),
		zap.Int("valid", report.Valid),
		zap.Int("userNotFound", report.UserNotFound),
		zap.Int("externalAuthErrors", report.ExternalAuthErrors),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}

// Cleanup audits and then repairs invalid records with the chosen action.
// A dry run reports exactly the mutations a real run would make, with zero
// writes. Without force, the first failed repair aborts the run; with force,
// failures are accumulated and the run continues.
func (s *ReconciliationService) Cleanup(ctx context.Context, action model.CleanupAction, chatflowIDs []string, dryRun, force bool) (*model.CleanupReport, error) {
	start := time.Now()
	if err := s.validationUtil.ValidateCleanupAction(action); err != nil {
		return nil, echo_errors.ErrInvalidCleanupAction
	}
	logger.Info("Starting reconciliation cleanup",
		zap.String("action", string(action)),
		zap.Strings("chatflowIDs", chatflowIDs),
		zap.Bool("dryRun", dryRun),
		zap.Bool("force", force))

	auditReport, err := s.Audit(ctx, chatflowIDs, false)
	if err != nil {
		return nil, err
	}

	report := &model.CleanupReport{
		AccessAuditReport: *auditReport,
		Action:            action,
		DryRun:            dryRun,
	}

	for _, finding := range auditReport.Findings {
		if finding.Issue == model.IssueExternalAuthError {
			report.Failed++
			detail := fmt.Sprintf("record %s: lookup failed, skipped: %s", finding.Record.ID, finding.Detail)
			report.Errors = append(report.Errors, detail)
			if !force {
				return nil, echo_errors.ErrReconciliationLookup
			}
			continue
		}
		if finding.Issue != model.IssueUserNotFound {
			continue
		}

		if err := s.repair(ctx, action, finding, dryRun, report); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("record %s: %s", finding.Record.ID, err.Error()))
			if !force {
				return nil, err
			}
		}
	}

	if !dryRun {
		s.recordCleanupRun(ctx, report)
		s.eventBus.Publish(ctx, util.EventCleanupCompleted, report)
		if err := s.notificationService.NotifyCleanupRun(ctx, report); err != nil {
			logger.Warn("Failed to notify admins of cleanup run", zap.Error(err))
		}
	}

	logger.Info("Reconciliation cleanup finished",
		zap.String("action", string(action)),
		zap.Bool("dryRun", dryRun),
		zap.Int("deleted", report.Deleted),
		zap.Int("deactivated", report.Deactivated),
		zap.Int("reassigned", report.Reassigned),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start)))
	return report, nil
}

// repair applies one cleanup action to one invalid record. With dryRun set it
// only counts what it would have done.
func (s *ReconciliationService) repair(ctx context.Context, action model.CleanupAction, finding model.AuditFinding, dryRun bool, report *model.CleanupReport) error {
	switch action {
	case model.CleanupDeleteInvalid:
		if !dryRun {
			if err := s.accessStore.Delete(ctx, finding.Record.ID); err != nil {
				return err
			}
			if finding.Shadow != nil {
				if err := s.cacheService.DeleteUserShadow(ctx, *finding.Shadow); err != nil {
					logger.Warn("Failed to evict cached shadow", zap.Error(err))
				}
			}
		}
		report.Deleted++
		return nil

	case model.CleanupDeactivateInvalid:
		if !dryRun {
			if err := s.accessStore.Deactivate(ctx, finding.Record.ID); err != nil {
				return err
			}
		}
		report.Deactivated++
		return nil

	case model.CleanupReassignByEmail:
		resolution := s.resolveRecord(ctx, finding)
		if resolution.Kind == model.ResolutionFailed {
			return fmt.Errorf("reassign failed: %s", resolution.Detail)
		}
		if !dryRun {
			if err := s.accessStore.ReassignUserID(ctx, finding.Record.ID, resolution.Profile.ID); err != nil {
				return err
			}
			shadow, err := s.shadowStore.Upsert(ctx, model.UserShadow{
				ID:       resolution.Profile.ID,
				Username: resolution.Profile.Username,
				Email:    resolution.Profile.Email,
			})
			if err != nil {
				logger.Warn("Failed to refresh shadow after reassign", zap.Error(err))
			} else if cacheErr := s.cacheService.SetUserShadow(ctx, *shadow); cacheErr != nil {
				logger.Warn("Failed to cache user shadow", zap.Error(cacheErr))
			}
		}
		report.Reassigned++
		return nil
	}
	return echo_errors.ErrInvalidCleanupAction
}

func (s *ReconciliationService) recordCleanupRun(ctx context.Context, report *model.CleanupReport) {
	details, _ := json.Marshal(map[string]interface{}{
		"action":      report.Action,
		"deleted":     report.Deleted,
		"deactivated": report.Deactivated,
		"reassigned":  report.Reassigned,
		"failed":      report.Failed,
	})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		ActorID:       helper_util.ActorFromContext(ctx),
		Action:        audit.ActionCleanupRun,
		ChangeDetails: details,
	}
	if err := s.auditService.LogAction(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log for cleanup run", zap.Error(err))
	}
}
