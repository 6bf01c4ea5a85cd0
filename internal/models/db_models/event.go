package db_models

import "time"

type EventType string

const (
	EventFlagship    EventType = "FLAGSHIP"
	EventPromotional EventType = "PROMOTIONAL"
	EventRegular     EventType = "REGULAR"
)

type EventStatus string

const (
	EventApproved EventStatus = "approved"
	EventPending  EventStatus = "pending"
	EventRejected EventStatus = "rejected"
)

type Event struct {
	BaseModel
	EventKey    string `gorm:"uniqueIndex;not null"`
	Summary     string `gorm:"not null"`
	Description string
	DTStart     time.Time  `gorm:"column:dtstart;index;not null"`
	DTEnd       *time.Time `gorm:"column:dtend"`
	Location    string
	Tags        StringList
	RSVPs       StringList `gorm:"column:rsvps"`
	MaxRSVPs    int        `gorm:"column:max_rsvps"`
	Host        string
	EventType   EventType   `gorm:"size:16"`
	Status      EventStatus `gorm:"size:16;index"`
	Timezone    string      `gorm:"size:64"`
}

func (e *Event) HasRSVP(username string) bool {
	return e.RSVPs.Contains(username)
}

func (e *Event) Full() bool {
	return e.MaxRSVPs > 0 && len(e.RSVPs) >= e.MaxRSVPs
}

type RSVP struct {
	BaseModel
	EventKey     string `gorm:"not null;uniqueIndex:idx_rsvp_event_user"`
	Username     string `gorm:"not null;uniqueIndex:idx_rsvp_event_user"`
	PhoneNumber  string `gorm:"size:32"`
	EventSummary string
	EventDate    time.Time
}
