package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func RespondCreated(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusCreated, APIResponse{
		Status:  "success",
		Code:    http.StatusCreated,
		Message: message,
		TraceID: traceIDOf(c),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: traceIDOf(c),
	})
}

// errorStatus lists the sentinel errors that surface to clients with their own message.
var errorStatus = []struct {
	err  error
	code int
}{
	{ErrInvalidPage, http.StatusBadRequest},
	{ErrInvalidPageSize, http.StatusBadRequest},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrInvalidWebhookSignature, http.StatusBadRequest},
	{ErrInvalidResetToken, http.StatusBadRequest},
	{ErrInvalidCredentials, http.StatusUnauthorized},
	{ErrPaymentRequired, http.StatusForbidden},
	{ErrForbidden, http.StatusForbidden},
	{ErrAccountNotFound, http.StatusNotFound},
	{ErrPendingRegistration, http.StatusNotFound},
	{ErrRentalItemNotFound, http.StatusNotFound},
	{ErrReservationNotFound, http.StatusNotFound},
	{ErrEventNotFound, http.StatusNotFound},
	{ErrRSVPNotFound, http.StatusNotFound},
	{ErrPostNotFound, http.StatusNotFound},
	{ErrAccountExists, http.StatusConflict},
	{ErrInsufficientInventory, http.StatusConflict},
	{ErrAlreadyRSVPed, http.StatusConflict},
	{ErrEventFull, http.StatusConflict},
	{ErrReconcileInProgress, http.StatusConflict},
	{ErrWaiverImmutable, http.StatusUnprocessableEntity},
	{ErrFounderImmutable, http.StatusUnprocessableEntity},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrPaymentGateway, http.StatusBadGateway},
}

func HandleServiceError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			RespondError(c, e.code, capitalize(e.err.Error()))
			return
		}
	}

	if errors.Is(err, ErrDatabaseError) {
		log.Printf("Database error: %v", err)
	} else {
		log.Printf("Unknown error: %v", err)
	}
	RespondError(c, http.StatusInternalServerError, "Internal server error")
}

func traceIDOf(c *gin.Context) string {
	if v, ok := c.Get("trace_id"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
