package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"clubhouse/internal/models/db_models"
	"clubhouse/pkg/utils"
)

type EventRepository interface {
	Create(ctx context.Context, event *db_models.Event) error
	FindByKey(ctx context.Context, key string) (*db_models.Event, error)
	ListUpcoming(ctx context.Context, from time.Time, until *time.Time) ([]db_models.Event, error)
	// AddRSVP inserts the RSVP and appends the username to the event, both only when absent.
	AddRSVP(ctx context.Context, rsvp *db_models.RSVP) (*db_models.Event, error)
	RemoveRSVP(ctx context.Context, eventKey, username string) (*db_models.Event, error)
	ListRSVPs(ctx context.Context, eventKey string) ([]db_models.RSVP, error)
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (e *eventRepository) Create(ctx context.Context, event *db_models.Event) error {
	return e.db.WithContext(ctx).Create(event).Error
}

func (e *eventRepository) FindByKey(ctx context.Context, key string) (*db_models.Event, error) {
	var event db_models.Event
	if err := e.db.WithContext(ctx).First(&event, "event_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (e *eventRepository) ListUpcoming(ctx context.Context, from time.Time, until *time.Time) ([]db_models.Event, error) {
	var events []db_models.Event
	q := e.db.WithContext(ctx).
		Where("status = ? AND dtstart >= ?", db_models.EventApproved, from)
	if until != nil {
		q = q.Where("dtstart <= ?", *until)
	}
	err := q.Order("dtstart").Find(&events).Error
	return events, err
}

func (e *eventRepository) AddRSVP(ctx context.Context, rsvp *db_models.RSVP) (*db_models.Event, error) {
	var event db_models.Event
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "event_key = ?", rsvp.EventKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrEventNotFound
			}
			return err
		}
		if event.HasRSVP(rsvp.Username) {
			return utils.ErrAlreadyRSVPed
		}
		if event.Full() {
			return utils.ErrEventFull
		}

		var existing int64
		if err := tx.Model(&db_models.RSVP{}).
			Where("event_key = ? AND username = ?", rsvp.EventKey, rsvp.Username).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return utils.ErrAlreadyRSVPed
		}

		rsvp.EventSummary = event.Summary
		rsvp.EventDate = event.DTStart
		if err := tx.Create(rsvp).Error; err != nil {
			return err
		}

		event.RSVPs = append(event.RSVPs, rsvp.Username)
		return tx.Model(&db_models.Event{BaseModel: db_models.BaseModel{ID: event.ID}}).
			Update("rsvps", event.RSVPs).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *eventRepository) RemoveRSVP(ctx context.Context, eventKey, username string) (*db_models.Event, error) {
	var event db_models.Event
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&event, "event_key = ?", eventKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrEventNotFound
			}
			return err
		}

		res := tx.Where("event_key = ? AND username = ?", eventKey, username).Delete(&db_models.RSVP{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 && !event.HasRSVP(username) {
			return utils.ErrRSVPNotFound
		}

		event.RSVPs = event.RSVPs.Without(username)
		return tx.Model(&db_models.Event{BaseModel: db_models.BaseModel{ID: event.ID}}).
			Update("rsvps", event.RSVPs).Error
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (e *eventRepository) ListRSVPs(ctx context.Context, eventKey string) ([]db_models.RSVP, error) {
	var rsvps []db_models.RSVP
	err := e.db.WithContext(ctx).
		Where("event_key = ?", eventKey).
		Order("username").
		Find(&rsvps).Error
	return rsvps, err
}

