package request_models

type CheckoutSessionRequest struct {
	PendingID string `json:"pending_id" binding:"required,uuid"`
}

type CancelCheckoutRequest struct {
	PendingID string `json:"pending_id" binding:"required,uuid"`
}
