package response_models

import (
	"time"

	"clubhouse/internal/models/db_models"
)

type EventResponse struct {
	Key         string     `json:"key"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	Location    string     `json:"location,omitempty"`
	Tags        []string   `json:"tags"`
	Host        string     `json:"host,omitempty"`
	EventType   string     `json:"event_type"`
	RSVPCount   int        `json:"rsvp_count"`
	MaxRSVPs    int        `json:"max_rsvps,omitempty"`
	HasRSVPed   bool       `json:"has_rsvped"`
}

func NewEventResponse(e *db_models.Event, username string) EventResponse {
	tags := []string(e.Tags)
	if tags == nil {
		tags = []string{}
	}
	return EventResponse{
		Key:         e.EventKey,
		Summary:     e.Summary,
		Description: e.Description,
		Start:       e.DTStart,
		End:         e.DTEnd,
		Location:    e.Location,
		Tags:        tags,
		Host:        e.Host,
		EventType:   string(e.EventType),
		RSVPCount:   len(e.RSVPs),
		MaxRSVPs:    e.MaxRSVPs,
		HasRSVPed:   username != "" && e.HasRSVP(username),
	}
}

type PhoneNumberResponse struct {
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
}

type PageResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}
