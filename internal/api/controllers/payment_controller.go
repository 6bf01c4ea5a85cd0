package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"clubhouse/internal/models/request_models"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

// maxWebhookBody matches the payload cap the processor documents for events.
const maxWebhookBody = 65536

type PaymentController struct {
	paymentService services.PaymentService
	webhookService services.WebhookService
}

func NewPaymentController(paymentService services.PaymentService, webhookService services.WebhookService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
		webhookService: webhookService,
	}
}

// CreateCheckoutSession godoc
// @Summary Create a membership checkout session
// @Description Starts subscription checkout for a pending registration
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.CheckoutSessionRequest true "Pending registration"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 502 {object} utils.APIResponse
// @Router /payments/checkout-session [post]
func (p *PaymentController) CreateCheckoutSession(c *gin.Context) {
	var request request_models.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := p.paymentService.CreateCheckoutSession(c.Request.Context(), uuid.MustParse(request.PendingID))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, resp, "Checkout session created successfully")
}

// CancelCheckout godoc
// @Summary Abandon a membership checkout
// @Description Deletes the pending registration
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body request_models.CancelCheckoutRequest true "Pending registration"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /payments/cancel [post]
func (p *PaymentController) CancelCheckout(c *gin.Context) {
	var request request_models.CancelCheckoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := p.paymentService.CancelCheckout(c.Request.Context(), uuid.MustParse(request.PendingID)); err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, nil, "Checkout cancelled")
}

// HandleWebhook godoc
// @Summary Payment processor webhook
// @Description Verifies the Stripe-Signature header and applies the event. Every verified event is acknowledged with 200.
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Failure 400 {object} utils.APIResponse
// @Router /payments/webhook [post]
func (p *PaymentController) HandleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := c.GetRawData()
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Unable to read request body")
		return
	}

	result, err := p.webhookService.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, result, "Webhook received")
}
