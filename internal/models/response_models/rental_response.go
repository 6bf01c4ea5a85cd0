package response_models

import (
	"github.com/google/uuid"

	"clubhouse/internal/models/db_models"
)

type UnavailableDatesResponse struct {
	RentalItemID uuid.UUID `json:"rental_item_id"`
	Quantity     int       `json:"quantity"`
	Dates        []string  `json:"dates"`
}

type BookingResponse struct {
	Reservation db_models.Reservation `json:"reservation"`
	CheckoutURL string                `json:"checkout_url,omitempty"`
}
