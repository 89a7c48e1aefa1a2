// controller/reconciliation_controller.go
package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowgate/api/audit"
	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/util"
)

type ReconciliationController struct {
	reconciliationService service.IReconciliationService
	auditService          audit.Service
}

func NewReconciliationController(reconciliationService service.IReconciliationService, auditService audit.Service) *ReconciliationController {
	return &ReconciliationController{
		reconciliationService: reconciliationService,
		auditService:          auditService,
	}
}

// RegisterRoutes registers the API routes
func (rc *ReconciliationController) RegisterRoutes(r gin.IRouter) {
	reconciliation := r.Group("/reconciliation")
	{
		reconciliation.GET("/audit", rc.Audit)
		reconciliation.POST("/cleanup", rc.Cleanup)
	}
	r.GET("/audit-logs", rc.QueryAuditLogs)
}

type cleanupRequest struct {
	Action      model.CleanupAction `json:"action" binding:"required"`
	ChatflowIDs []string            `json:"chatflow_ids"`
	DryRun      bool                `json:"dry_run"`
	Force       bool                `json:"force"`
}

// Audit endpoint. Read-only: classifies every access record against the
// identity provider without mutating anything.
func (rc *ReconciliationController) Audit(c *gin.Context) {
	var chatflowIDs []string
	if raw := c.Query("chatflow_ids"); raw != "" {
		chatflowIDs = strings.Split(raw, ",")
	}
	includeValid := c.Query("include_valid") == "true"

	report, err := rc.reconciliationService.Audit(c, chatflowIDs, includeValid)
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to audit access records", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Cleanup endpoint
func (rc *ReconciliationController) Cleanup(c *gin.Context) {
	var req cleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid cleanup request", echo_errors.ErrInvalidCleanupAction)
		return
	}

	report, err := rc.reconciliationService.Cleanup(c, req.Action, req.ChatflowIDs, req.DryRun, req.Force)
	if err != nil {
		switch {
		case errors.Is(err, echo_errors.ErrInvalidCleanupAction):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid cleanup action", err)
		case errors.Is(err, echo_errors.ErrReconciliationLookup):
			util.RespondWithError(c, http.StatusBadGateway, "Identity provider lookup failed, re-run with force to skip", err)
		case errors.Is(err, echo_errors.ErrDatabaseOperation):
			util.RespondWithError(c, http.StatusInternalServerError, "Database operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to run cleanup", err)
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// QueryAuditLogs endpoint exposes the administrative audit trail.
func (rc *ReconciliationController) QueryAuditLogs(c *gin.Context) {
	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid from timestamp", err)
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid to timestamp", err)
			return
		}
	}

	logs, err := rc.auditService.QueryLogs(c, from, to, c.Query("actor_id"), c.Query("chatflow_id"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query audit logs", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
