package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/models/request_models"
	"clubhouse/internal/models/response_models"
	"clubhouse/internal/repositories"
	"clubhouse/pkg/utils"
)

type EventService interface {
	ListUpcoming(ctx context.Context, username string) ([]response_models.EventResponse, error)
	RSVP(ctx context.Context, requester Requester, key string, request request_models.RSVPRequest) (*response_models.EventResponse, error)
	CancelRSVP(ctx context.Context, requester Requester, key string) (*response_models.EventResponse, error)
	PhoneNumbers(ctx context.Context, key string) ([]response_models.PhoneNumberResponse, error)
}

type eventService struct {
	eventRepo repositories.EventRepository
	notifier  NotificationService
	log       *zap.Logger
	now       func() time.Time
}

func NewEventService(eventRepo repositories.EventRepository, notifier NotificationService, log *zap.Logger) EventService {
	return &eventService{
		eventRepo: eventRepo,
		notifier:  notifier,
		log:       log.Named("events"),
		now:       time.Now,
	}
}

func (e *eventService) ListUpcoming(ctx context.Context, username string) ([]response_models.EventResponse, error) {
	events, err := e.eventRepo.ListUpcoming(ctx, e.now(), nil)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", utils.ErrDatabaseError)
	}
	out := make([]response_models.EventResponse, 0, len(events))
	for i := range events {
		out = append(out, response_models.NewEventResponse(&events[i], username))
	}
	return out, nil
}

// approvedEvent hides events that are not approved.
func (e *eventService) approvedEvent(ctx context.Context, key string) (*db_models.Event, error) {
	event, err := e.eventRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", utils.ErrDatabaseError)
	}
	if event == nil || event.Status != db_models.EventApproved {
		return nil, utils.ErrEventNotFound
	}
	return event, nil
}

func (e *eventService) RSVP(ctx context.Context, requester Requester, key string, request request_models.RSVPRequest) (*response_models.EventResponse, error) {
	if _, err := e.approvedEvent(ctx, key); err != nil {
		return nil, err
	}

	event, err := e.eventRepo.AddRSVP(ctx, &db_models.RSVP{
		EventKey:    key,
		Username:    requester.Username,
		PhoneNumber: request.PhoneNumber,
	})
	if err != nil {
		return nil, rsvpError(err)
	}

	e.notifier.RSVPChanged(ctx, event, requester.Username, true)
	resp := response_models.NewEventResponse(event, requester.Username)
	return &resp, nil
}

func (e *eventService) CancelRSVP(ctx context.Context, requester Requester, key string) (*response_models.EventResponse, error) {
	event, err := e.eventRepo.RemoveRSVP(ctx, key, requester.Username)
	if err != nil {
		return nil, rsvpError(err)
	}

	e.notifier.RSVPChanged(ctx, event, requester.Username, false)
	resp := response_models.NewEventResponse(event, requester.Username)
	return &resp, nil
}

func rsvpError(err error) error {
	for _, known := range []error{utils.ErrEventNotFound, utils.ErrAlreadyRSVPed, utils.ErrEventFull, utils.ErrRSVPNotFound} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("rsvp: %v: %w", err, utils.ErrDatabaseError)
}

func (e *eventService) PhoneNumbers(ctx context.Context, key string) ([]response_models.PhoneNumberResponse, error) {
	event, err := e.eventRepo.FindByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lookup event: %w", utils.ErrDatabaseError)
	}
	if event == nil {
		return nil, utils.ErrEventNotFound
	}

	rsvps, err := e.eventRepo.ListRSVPs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list rsvps: %w", utils.ErrDatabaseError)
	}
	out := make([]response_models.PhoneNumberResponse, 0, len(rsvps))
	for _, r := range rsvps {
		out = append(out, response_models.PhoneNumberResponse{Username: r.Username, PhoneNumber: r.PhoneNumber})
	}
	return out, nil
}
