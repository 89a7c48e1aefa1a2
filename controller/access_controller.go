// controller/access_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/identity"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/util"
)

type AccessController struct {
	accessService service.IAccessService
}

func NewAccessController(accessService service.IAccessService) *AccessController {
	return &AccessController{
		accessService: accessService,
	}
}

// RegisterRoutes registers the API routes
func (ac *AccessController) RegisterRoutes(r gin.IRouter) {
	access := r.Group("/chatflows/:chatflowId/access")
	{
		access.POST("", ac.GrantAccess)
		access.DELETE("", ac.RevokeAccess)
		access.POST("/bulk", ac.BulkGrantAccess)
		access.GET("", ac.ListUsers)
	}
}

type grantRequest struct {
	Email string `json:"email" binding:"required"`
}

type bulkGrantRequest struct {
	Emails []string `json:"emails" binding:"required"`
}

// GrantAccess endpoint
func (ac *AccessController) GrantAccess(c *gin.Context) {
	chatflowID := c.Param("chatflowId")
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid grant request", echo_errors.ErrInvalidAccessData)
		return
	}

	result, err := ac.accessService.GrantByEmail(c, req.Email, chatflowID)
	if err != nil {
		switch {
		case errors.Is(err, echo_errors.ErrInvalidEmail), errors.Is(err, echo_errors.ErrInvalidAccessData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid grant request", err)
		case errors.Is(err, identity.ErrProfileNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not known to identity provider", err)
		case errors.Is(err, echo_errors.ErrDatabaseOperation):
			util.RespondWithError(c, http.StatusInternalServerError, "Database operation failed", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to grant access", err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// RevokeAccess endpoint
func (ac *AccessController) RevokeAccess(c *gin.Context) {
	chatflowID := c.Param("chatflowId")
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid revoke request", echo_errors.ErrInvalidAccessData)
		return
	}

	if err := ac.accessService.RevokeByEmail(c, req.Email, chatflowID); err != nil {
		switch {
		case errors.Is(err, echo_errors.ErrInvalidEmail), errors.Is(err, echo_errors.ErrInvalidAccessData):
			util.RespondWithError(c, http.StatusBadRequest, "Invalid revoke request", err)
		case errors.Is(err, identity.ErrProfileNotFound):
			util.RespondWithError(c, http.StatusNotFound, "User not known to identity provider", err)
		default:
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to revoke access", err)
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// BulkGrantAccess endpoint. The response is always the full per-email result
// list; partial failure is a 200, not an error.
func (ac *AccessController) BulkGrantAccess(c *gin.Context) {
	chatflowID := c.Param("chatflowId")
	var req bulkGrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid bulk grant request", echo_errors.ErrInvalidAccessData)
		return
	}
	if len(req.Emails) == 0 {
		util.RespondWithError(c, http.StatusBadRequest, "At least one email is required", echo_errors.ErrInvalidAccessData)
		return
	}

	results := ac.accessService.BulkGrantByEmail(c, req.Emails, chatflowID)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ListUsers endpoint
func (ac *AccessController) ListUsers(c *gin.Context) {
	chatflowID := c.Param("chatflowId")

	entries, err := ac.accessService.ListUsers(c, chatflowID)
	if err != nil {
		if errors.Is(err, echo_errors.ErrInvalidAccessData) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid chatflow id", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to list users", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": entries})
}
