package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"clubhouse/internal/models/request_models"
	"clubhouse/internal/services"
	"clubhouse/pkg/utils"
)

type RentalController struct {
	rentalService services.RentalService
}

func NewRentalController(rentalService services.RentalService) *RentalController {
	return &RentalController{rentalService: rentalService}
}

// ListItems godoc
// @Summary List rental equipment
// @Tags Rentals
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /rentals/items [get]
func (r *RentalController) ListItems(c *gin.Context) {
	items, err := r.rentalService.ListItems(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, items, "Rental items fetched successfully")
}

// ListLocations godoc
// @Summary List pickup locations
// @Tags Rentals
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Router /rentals/locations [get]
func (r *RentalController) ListLocations(c *gin.Context) {
	locations, err := r.rentalService.ListLocations(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, locations, "Rental locations fetched successfully")
}

// UnavailableDates godoc
// @Summary Dates an item cannot be booked
// @Description Lists dates on which the requested quantity exceeds what is left
// @Tags Rentals
// @Produce json
// @Param id path string true "Rental item id"
// @Param quantity query int false "Units wanted" default(1)
// @Success 200 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Router /rentals/items/{id}/unavailable-dates [get]
func (r *RentalController) UnavailableDates(c *gin.Context) {
	itemID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid quantity")
		return
	}

	resp, err := r.rentalService.UnavailableDates(c.Request.Context(), itemID, quantity)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, resp, "Unavailable dates fetched successfully")
}

// CreateBooking godoc
// @Summary Book equipment with card payment
// @Description Holds the units and returns a checkout URL. Unpaid holds are released after the hold TTL.
// @Tags Rentals
// @Accept json
// @Produce json
// @Param request body request_models.BookingRequest true "Booking"
// @Success 201 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /rentals/bookings [post]
func (r *RentalController) CreateBooking(c *gin.Context) {
	var req request_models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	resp, err := r.rentalService.CreateBooking(c.Request.Context(), requester(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondCreated(c, resp, "Booking held, complete checkout to confirm")
}

// ConfirmCashBooking godoc
// @Summary Book equipment paid in cash
// @Tags Rentals
// @Accept json
// @Produce json
// @Param request body request_models.BookingRequest true "Booking"
// @Success 201 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse
// @Security BearerAuth
// @Router /rentals/bookings/confirm-cash [post]
func (r *RentalController) ConfirmCashBooking(c *gin.Context) {
	var req request_models.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, "Invalid request format")
		return
	}

	resp, err := r.rentalService.ConfirmCashBooking(c.Request.Context(), requester(c), req)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondCreated(c, resp, "Booking confirmed")
}

// ListMyBookings godoc
// @Summary List my bookings
// @Tags Rentals
// @Produce json
// @Success 200 {object} utils.APIResponse
// @Security BearerAuth
// @Router /rentals/bookings [get]
func (r *RentalController) ListMyBookings(c *gin.Context) {
	bookings, err := r.rentalService.ListMyBookings(c.Request.Context(), requester(c))
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, bookings, "Bookings fetched successfully")
}

// CancelBooking godoc
// @Summary Cancel a booking
// @Description Owners and admins can cancel. The held units are released.
// @Tags Rentals
// @Produce json
// @Param id path string true "Reservation id"
// @Success 200 {object} utils.APIResponse
// @Failure 403 {object} utils.APIResponse
// @Failure 404 {object} utils.APIResponse
// @Security BearerAuth
// @Router /rentals/bookings/{id} [delete]
func (r *RentalController) CancelBooking(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := r.rentalService.CancelBooking(c.Request.Context(), requester(c), id); err != nil {
		utils.HandleServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, nil, "Booking cancelled")
}
