package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clubhouse/internal/models/request_models"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

type EventController struct {
	eventService services.EventService
}

func NewEventController(eventService services.EventService) *EventController {
	return &EventController{eventService: eventService}
}

// ListUpcoming godoc
// @Summary List upcoming events
// @Description Approved events that have not started yet, with the caller's RSVP flag
// @Tags Events
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /events [get]
func (e *EventController) ListUpcoming(c *gin.Context) {
	events, err := e.eventService.ListUpcoming(c.Request.Context(), c.GetString("username"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, events, "Events fetched successfully")
}

// RSVP godoc
// @Summary RSVP to an event
// @Tags Events
// @Accept json
// @Produce json
// @Param key path string true "Event key"
// @Param request body request_models.RSVPRequest false "Contact phone"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /events/{key}/rsvp [post]
func (e *EventController) RSVP(c *gin.Context) {
	var req request_models.RSVPRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
			return
		}
	}

	resp, err := e.eventService.RSVP(c.Request.Context(), requester(c), c.Param("key"), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resp, "RSVP recorded")
}

// CancelRSVP godoc
// @Summary Cancel my RSVP
// @Tags Events
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /events/{key}/rsvp [delete]
func (e *EventController) CancelRSVP(c *gin.Context) {
	resp, err := e.eventService.CancelRSVP(c.Request.Context(), requester(c), c.Param("key"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resp, "RSVP cancelled")
}

// PhoneNumbers godoc
// @Summary Attendee phone numbers
// @Tags Events
// @Produce json
// @Param key path string true "Event key"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Security BearerAuth
// @Router /events/{key}/phone-numbers [get]
func (e *EventController) PhoneNumbers(c *gin.Context) {
	phones, err := e.eventService.PhoneNumbers(c.Request.Context(), c.Param("key"))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, phones, "Phone numbers fetched successfully")
}
