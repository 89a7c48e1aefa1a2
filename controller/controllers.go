// controller/controllers.go
package controller

import "github.com/flowgate/api/service"

type Controllers struct {
	Access         *AccessController
	Reconciliation *ReconciliationController
	Chat           *ChatController
}

func InitializeControllers(services *service.Services) *Controllers {
	return &Controllers{
		Access:         NewAccessController(services.AccessService),
		Reconciliation: NewReconciliationController(services.ReconciliationService, services.AuditService),
		Chat:           NewChatController(services.RelayService, services.SessionService),
	}
}
