// service/access_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/identity"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/util"
)

type IAccessService interface {
	GrantByEmail(ctx context.Context, email, chatflowID string) (*model.GrantResult, error)
	RevokeByEmail(ctx context.Context, email, chatflowID string) error
	BulkGrantByEmail(ctx context.Context, emails []string, chatflowID string) []model.BulkGrantResult
	ListUsers(ctx context.Context, chatflowID string) ([]model.AccessEntry, error)
}

// AccessService manages who may use which chatflow. Grants are keyed by email
// at the API edge and resolved to the identity provider's current user id
// before anything is written, because stored ids go stale while emails do not.
type AccessService struct {
	accessStore         AccessStore
	shadowStore         ShadowStore
	identityProvider    identity.Provider
	validationUtil      *util.ValidationUtil
	cacheService        ShadowCache
	eventBus            *util.EventBus
	notificationService *util.NotificationService
}

var _ IAccessService = &AccessService{}

func NewAccessService(accessStore AccessStore,
	shadowStore ShadowStore,
	identityProvider identity.Provider,
	validationUtil *util.ValidationUtil,
	cacheService ShadowCache,
	eventBus *util.EventBus,
	notificationService *util.NotificationService) *AccessService {

	service := &AccessService{
		accessStore:         accessStore,
		shadowStore:         shadowStore,
		identityProvider:    identityProvider,
		validationUtil:      validationUtil,
		cacheService:        cacheService,
		eventBus:            eventBus,
		notificationService: notificationService,
	}

	service.eventBus.Subscribe(util.EventAccessGranted, service.handleAccessChangeEvent)
	service.eventBus.Subscribe(util.EventAccessRevoked, service.handleAccessChangeEvent)

	return service
}

func (s *AccessService) handleAccessChangeEvent(ctx context.Context, event util.Event) error {
	result, ok := event.Payload.(*model.GrantResult)
	if !ok {
		logger.Warn("Unexpected payload on access change event", zap.String("eventType", event.Type))
		return nil
	}
	return s.notificationService.NotifyAccessChange(ctx, event.Type, result.UserID, result.ChatflowID)
}

// GrantByEmail resolves the email against the identity provider, refreshes the
// local shadow, and upserts the access record. Granting to an email the
// provider does not know is an error; granting twice is not.
func (s *AccessService) GrantByEmail(ctx context.Context, email, chatflowID string) (*model.GrantResult, error) {
	start := time.Now()
	logger.Info("Granting chatflow access by email",
		zap.String("email", email),
		zap.String("chatflowID", chatflowID))

	if err := s.validationUtil.ValidateEmail(email); err != nil {
		return nil, echo_errors.ErrInvalidEmail
	}
	if err := s.validationUtil.ValidateChatflowID(chatflowID); err != nil {
		return nil, echo_errors.ErrInvalidAccessData
	}

	profile, err := s.identityProvider.ResolveByEmail(ctx, email)
	if err != nil {
		logger.Error("Failed to resolve email with identity provider",
			zap.Error(err),
			zap.String("email", email))
		return nil, err
	}

	shadow, err := s.shadowStore.Upsert(ctx, model.UserShadow{
		ID:       profile.ID,
		Username: profile.Username,
		Email:    profile.Email,
	})
	if err != nil {
		return nil, err
	}
	if err := s.cacheService.SetUserShadow(ctx, *shadow); err != nil {
		logger.Warn("Failed to cache user shadow", zap.Error(err), zap.String("shadowID", shadow.ID))
	}

	result, err := s.accessStore.Grant(ctx, profile.ID, chatflowID)
	if err != nil {
		return nil, err
	}

	s.eventBus.Publish(ctx, util.EventAccessGranted, result)

	logger.Info("Chatflow access granted by email",
		zap.String("email", email),
		zap.String("outcome", string(result.Outcome)),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

// RevokeByEmail disables the user's record for a chatflow. The email is
// resolved through the shadow cache first so revocation keeps working even
// when the identity provider is down.
func (s *AccessService) RevokeByEmail(ctx context.Context, email, chatflowID string) error {
	start := time.Now()
	logger.Info("Revoking chatflow access by email",
		zap.String("email", email),
		zap.String("chatflowID", chatflowID))

	if err := s.validationUtil.ValidateEmail(email); err != nil {
		return echo_errors.ErrInvalidEmail
	}
	if err := s.validationUtil.ValidateChatflowID(chatflowID); err != nil {
		return echo_errors.ErrInvalidAccessData
	}

	userID, err := s.resolveUserID(ctx, email)
	if err != nil {
		return err
	}

	if err := s.accessStore.Revoke(ctx, userID, chatflowID); err != nil {
		return err
	}

	s.eventBus.Publish(ctx, util.EventAccessRevoked, &model.GrantResult{
		UserID:     userID,
		ChatflowID: chatflowID,
	})

	logger.Info("Chatflow access revoked by email",
		zap.String("email", email),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// resolveUserID finds the provider user id for an email: redis cache, then the
// shadow store, then the provider itself.
func (s *AccessService) resolveUserID(ctx context.Context, email string) (string, error) {
	if cached, err := s.cacheService.GetUserShadowByEmail(ctx, email); err != nil {
		logger.Warn("Shadow cache lookup failed", zap.Error(err), zap.String("email", email))
	} else if cached != nil {
		return cached.ID, nil
	}

	shadow, err := s.shadowStore.FindByEmail(ctx, email)
	if err == nil {
		if cacheErr := s.cacheService.SetUserShadow(ctx, *shadow); cacheErr != nil {
			logger.Warn("Failed to cache user shadow", zap.Error(cacheErr))
		}
		return shadow.ID, nil
	}
	if !errors.Is(err, echo_errors.ErrUserShadowNotFound) {
		return "", err
	}

	profile, err := s.identityProvider.ResolveByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return profile.ID, nil
}

// BulkGrantByEmail grants a list of emails in order. Each email stands alone;
// a failure is reported in its slot and the batch continues.
func (s *AccessService) BulkGrantByEmail(ctx context.Context, emails []string, chatflowID string) []model.BulkGrantResult {
	start := time.Now()
	logger.Info("Bulk granting chatflow access",
		zap.Int("count", len(emails)),
		zap.String("chatflowID", chatflowID))

	results := make([]model.BulkGrantResult, 0, len(emails))
	for _, email := range emails {
		grant, err := s.GrantByEmail(ctx, email, chatflowID)
		if err != nil {
			results = append(results, model.BulkGrantResult{
				Email:  email,
				Status: model.BulkFailed,
				Detail: err.Error(),
			})
			continue
		}
		results = append(results, model.BulkGrantResult{
			Email:  email,
			Status: model.BulkGrantStatus(grant.Outcome),
		})
	}

	logger.Info("Bulk grant finished",
		zap.Int("count", len(results)),
		zap.Duration("duration", time.Since(start)))
	return results
}

// ListUsers returns every access record for a chatflow with the cached shadow
// profile joined in where one exists.
func (s *AccessService) ListUsers(ctx context.Context, chatflowID string) ([]model.AccessEntry, error) {
	if err := s.validationUtil.ValidateChatflowID(chatflowID); err != nil {
		return nil, echo_errors.ErrInvalidAccessData
	}
	return s.accessStore.ListForChatflow(ctx, chatflowID)
}
