package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/repositories"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

// requester reads the caller set by the JWT middleware. Anonymous callers get a zero Requester.
func requester(c *gin.Context) services.Requester {
	r := services.Requester{
		Username: c.GetString("username"),
		IsAdmin:  c.GetString("Role") == db_models.RoleAdmin,
	}
	if id, err := uuid.Parse(c.GetString("user_id")); err == nil {
		r.AccountID = id
	}
	return r
}

// currentAccountID responds 401 and returns false when the token carries no usable id.
func currentAccountID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.GetString("user_id"))
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, "Invalid or expired token")
		return uuid.Nil, false
	}
	return id, true
}

// auditContext tags account writes made during this request with the caller.
func auditContext(c *gin.Context) context.Context {
	actor := c.GetString("username")
	if actor == "" {
		actor = "anonymous"
	}
	return repositories.WithAuditActor(c.Request.Context(), repositories.AuditActor{
		ModifiedBy: actor,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
