package db_models

import (
	"time"

	"github.com/google/uuid"
)

type EquipmentType string

const (
	EquipmentKayak       EquipmentType = "kayak"
	EquipmentTube        EquipmentType = "tube"
	EquipmentPaddleboard EquipmentType = "paddleboard"
	EquipmentOther       EquipmentType = "other"
)

type RentalItem struct {
	BaseModel
	Name                 string `gorm:"not null"`
	Description          string
	Type                 EquipmentType `gorm:"size:16;not null"`
	QuantityAvailable    int           `gorm:"not null"`
	PriceHalfDay         int64         // cents
	PriceFullDay         int64         // cents
	StripePriceIDHalfDay string
	StripePriceIDFullDay string
	IsActive             bool `gorm:"index"`
}

// Price returns the unit price in cents for the interval.
func (r *RentalItem) Price(interval RentalInterval) int64 {
	if interval == IntervalHalfDay {
		return r.PriceHalfDay
	}
	return r.PriceFullDay
}

type RentalLocation struct {
	BaseModel
	Name    string `gorm:"not null"`
	Address string
	Lat     float64
	Lng     float64
	Notes   string
	Image   string
}

type RentalInterval string

const (
	IntervalHalfDay RentalInterval = "half-day"
	IntervalFullDay RentalInterval = "full-day"
)

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// HoldsInventory reports whether reservations in this state count against inventory.
func (s ReservationStatus) HoldsInventory() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

type Reservation struct {
	BaseModel
	AccountID         *uuid.UUID        `gorm:"type:uuid;index"`
	Name              string            `gorm:"not null"`
	Email             string            `gorm:"not null"`
	Phone             string            `gorm:"size:32"`
	RentalItemID      uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservation_item_date"`
	Date              string            `gorm:"size:10;not null;index:idx_reservation_item_date"`
	Interval          RentalInterval    `gorm:"size:16;not null"`
	TimeBlock         string            `gorm:"size:2"`
	Quantity          int               `gorm:"not null"`
	Total             int64             // cents
	PaymentStatus     string            `gorm:"size:16;not null"`
	PaymentMethod     string            `gorm:"size:16;not null"`
	Status            ReservationStatus `gorm:"size:16;not null;index"`
	LocationID        *uuid.UUID        `gorm:"type:uuid"`
	LocationName      string
	EquipmentType     EquipmentType `gorm:"size:16"`
	HoldExpiresAt     *time.Time    `gorm:"index"`
	CheckoutSessionID string        `gorm:"index"`
}

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"

	PaymentMethodStripe = "stripe"
	PaymentMethodCash   = "cash"
)

// ReservationCounter tracks units held per item and date. reserved never exceeds the item's inventory.
type ReservationCounter struct {
	RentalItemID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Date         string    `gorm:"size:10;primaryKey"`
	Reserved     int       `gorm:"not null"`
}
