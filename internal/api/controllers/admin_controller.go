package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clubhouse/internal/models/request_models"
	"clubhouse/internal/reconcile"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

type AdminController struct {
	adminService services.AdminService
}

func NewAdminController(adminService services.AdminService) *AdminController {
	return &AdminController{adminService: adminService}
}

// PaymentIssues godoc
// @Summary Accounts with payment problems
// @Description Paused accounts and accounts with a recorded payment failure
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/payment-issues [get]
func (a *AdminController) PaymentIssues(c *gin.Context) {
	accounts, err := a.adminService.PaymentIssues(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, accounts, "Payment issues fetched successfully")
}

// AccountDetail godoc
// @Summary Full account detail for admins
// @Tags Admin
// @Produce json
// @Param id path string true "Account id"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/accounts/{id} [get]
func (a *AdminController) AccountDetail(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	detail, err := a.adminService.AccountDetail(c.Request.Context(), id)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, detail, "Account fetched successfully")
}

// Pause godoc
// @Summary Pause an account
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Account id"
// @Param request body request_models.AccountActionRequest false "Reason"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/accounts/{id}/pause [post]
func (a *AdminController) Pause(c *gin.Context) {
	id, req, ok := a.bindAction(c)
	if !ok {
		return
	}
	if err := a.adminService.Pause(auditContext(c), id, req.Reason); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Account paused")
}

// Suspend godoc
// @Summary Suspend an account
// @Description Suspensions are never lifted by payment events, only by reinstate
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Account id"
// @Param request body request_models.AccountActionRequest false "Reason"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/accounts/{id}/suspend [post]
func (a *AdminController) Suspend(c *gin.Context) {
	id, req, ok := a.bindAction(c)
	if !ok {
		return
	}
	if err := a.adminService.Suspend(auditContext(c), id, req.Reason); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Account suspended")
}

// Reinstate godoc
// @Summary Reinstate a paused or suspended account
// @Tags Admin
// @Produce json
// @Param id path string true "Account id"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/accounts/{id}/reinstate [post]
func (a *AdminController) Reinstate(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := a.adminService.Reinstate(auditContext(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Account reinstated")
}

// SetNotes godoc
// @Summary Replace the admin notes on an account
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Account id"
// @Param request body request_models.AdminNotesRequest true "Notes"
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/accounts/{id}/notes [post]
func (a *AdminController) SetNotes(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req request_models.AdminNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := a.adminService.SetNotes(auditContext(c), id, req.Notes); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Notes saved")
}

// PaymentStats godoc
// @Summary Payment status breakdown
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/payment-stats [get]
func (a *AdminController) PaymentStats(c *gin.Context) {
	stats, err := a.adminService.PaymentStats(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, stats, "Payment stats fetched successfully")
}

// Reconcile godoc
// @Summary Reconcile accounts against the payment processor
// @Description analyze reports discrepancies, sync also writes the fixes
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body request_models.ReconcileRequest true "Mode"
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/reconcile [post]
func (a *AdminController) Reconcile(c *gin.Context) {
	var req request_models.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	result, err := a.adminService.Reconcile(auditContext(c), reconcile.Mode(req.Mode))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, result, "Reconciliation finished")
}

// RecentRuns godoc
// @Summary Recent reconciliation runs
// @Tags Admin
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /admin/reconcile/runs [get]
func (a *AdminController) RecentRuns(c *gin.Context) {
	runs, err := a.adminService.RecentRuns(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, runs, "Reconciliation runs fetched successfully")
}

func (a *AdminController) bindAction(c *gin.Context) (uuid.UUID, request_models.AccountActionRequest, bool) {
	var req request_models.AccountActionRequest
	id, ok := pathUUID(c, "id")
	if !ok {
		return id, req, false
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
			return id, req, false
		}
	}
	return id, req, true
}
