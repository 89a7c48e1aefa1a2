// service/services.go
package service

import (
	"context"

	"github.com/flowgate/api/audit"
	"github.com/flowgate/api/dao"
	"github.com/flowgate/api/engine"
	"github.com/flowgate/api/identity"
	"github.com/flowgate/api/ledger"
	"github.com/flowgate/api/util"
)

// Services aggregates all services
type Services struct {
	AccessService         IAccessService
	ReconciliationService IReconciliationService
	BillingService        IBillingService
	SessionService        ISessionService
	RelayService          IRelayService
	AuditService          audit.Service
}

// NewServices creates and returns all services
func NewServices(accessDAO *dao.AccessDAO,
	shadowDAO *dao.UserShadowDAO,
	chatDAO *dao.ChatDAO,
	identityProvider identity.Provider,
	ledgerClient ledger.Client,
	engineClient engine.Client,
	auditService audit.Service) *Services {

	validationUtil := util.NewValidationUtil()
	cacheService := util.NewCacheService()
	lockService := util.NewLockService()
	notificationService := util.NewNotificationService()

	eventBus := util.NewEventBus()
	eventBus.Start(context.Background())

	billingService := NewBillingService(ledgerClient, cacheService, lockService)
	sessionService := NewSessionService(chatDAO)

	return &Services{
		AccessService: NewAccessService(accessDAO, shadowDAO, identityProvider,
			validationUtil, cacheService, eventBus, notificationService),
		ReconciliationService: NewReconciliationService(accessDAO, shadowDAO, identityProvider,
			validationUtil, auditService, cacheService, eventBus, notificationService),
		BillingService: billingService,
		SessionService: sessionService,
		RelayService: NewRelayService(accessDAO, billingService, sessionService,
			engineClient, validationUtil),
		AuditService: auditService,
	}
}
