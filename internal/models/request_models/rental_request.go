package request_models

type BookingRequest struct {
	RentalItemID string `json:"rental_item_id" binding:"required,uuid"`
	LocationID   string `json:"location_id" binding:"omitempty,uuid"`
	Date         string `json:"date" binding:"required,datetime=2006-01-02"`
	Interval     string `json:"interval" binding:"required,oneof=half-day full-day"`
	TimeBlock    string `json:"time_block" binding:"omitempty,oneof=AM PM"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	Name         string `json:"name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone" binding:"omitempty,max=32"`
}
