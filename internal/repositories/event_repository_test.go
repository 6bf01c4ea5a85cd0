package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clubhouse/internal/models/db_models"
	"clubhouse/internal/repositories"
	"clubhouse/internal/testutil"
	"clubhouse/pkg/utils"
)

func TestRSVPLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewEventRepository(db)
	ctx := context.Background()

	start := time.Now().UTC().Add(48 * time.Hour)
	require.NoError(t, repo.Create(ctx, &db_models.Event{
		EventKey: "evt-1",
		Summary:  "River float",
		DTStart:  start,
		Status:   db_models.EventApproved,
		MaxRSVPs: 2,
		Tags:     db_models.StringList{"water"},
	}))

	event, err := repo.AddRSVP(ctx, &db_models.RSVP{EventKey: "evt-1", Username: "alice", PhoneNumber: "555-0100"})
	require.NoError(t, err)
	assert.Equal(t, db_models.StringList{"alice"}, event.RSVPs)

	_, err = repo.AddRSVP(ctx, &db_models.RSVP{EventKey: "evt-1", Username: "alice"})
	require.ErrorIs(t, err, utils.ErrAlreadyRSVPed)

	_, err = repo.AddRSVP(ctx, &db_models.RSVP{EventKey: "evt-1", Username: "bob"})
	require.NoError(t, err)

	_, err = repo.AddRSVP(ctx, &db_models.RSVP{EventKey: "evt-1", Username: "carol"})
	require.ErrorIs(t, err, utils.ErrEventFull)

	rsvps, err := repo.ListRSVPs(ctx, "evt-1")
	require.NoError(t, err)
	require.Len(t, rsvps, 2)
	assert.Equal(t, "River float", rsvps[0].EventSummary)

	event, err = repo.RemoveRSVP(ctx, "evt-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, db_models.StringList{"bob"}, event.RSVPs)

	_, err = repo.RemoveRSVP(ctx, "evt-1", "alice")
	require.ErrorIs(t, err, utils.ErrRSVPNotFound)

	stored, err := repo.FindByKey(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, db_models.StringList{"bob"}, stored.RSVPs)
	assert.Equal(t, db_models.StringList{"water"}, stored.Tags)

	_, err = repo.AddRSVP(ctx, &db_models.RSVP{EventKey: "missing", Username: "bob"})
	require.ErrorIs(t, err, utils.ErrEventNotFound)
}

func TestListUpcomingOnlyApproved(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewEventRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, e := range []db_models.Event{
		{EventKey: "past", Summary: "past", DTStart: now.Add(-24 * time.Hour), Status: db_models.EventApproved},
		{EventKey: "soon", Summary: "soon", DTStart: now.Add(24 * time.Hour), Status: db_models.EventApproved},
		{EventKey: "later", Summary: "later", DTStart: now.Add(10 * 24 * time.Hour), Status: db_models.EventApproved},
		{EventKey: "pending", Summary: "pending", DTStart: now.Add(48 * time.Hour), Status: db_models.EventPending},
	} {
		e := e
		require.NoError(t, repo.Create(ctx, &e), "event %d", i)
	}

	events, err := repo.ListUpcoming(ctx, now, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "soon", events[0].EventKey)

	until := now.Add(7 * 24 * time.Hour)
	events, err = repo.ListUpcoming(ctx, now, &until)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestEventListsRoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &db_models.Event{
		EventKey: "evt-tags",
		Summary:  "Paddle night",
		DTStart:  time.Now().UTC().Add(24 * time.Hour),
		Status:   db_models.EventApproved,
		Tags:     db_models.StringList{"water", "night paddle"},
		RSVPs:    db_models.StringList{"alice"},
	}))

	event, err := repo.FindByKey(ctx, "evt-tags")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, db_models.StringList{"water", "night paddle"}, event.Tags)
	assert.Equal(t, db_models.StringList{"alice"}, event.RSVPs)
}
