package tickets_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/logger"
	"ms-admission/internal/models"
	"ms-admission/internal/tickets/codegen"
	"ms-admission/internal/tickets/db"
	tickets "ms-admission/internal/tickets/service"
	"ms-admission/internal/utils"
)

var doorOpens = time.Date(2026, 6, 12, 20, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu        sync.Mutex
	checkins  []models.CheckinEvent
	lifecycle []models.TicketLifecycleEvent
	err       error
}

func (p *recordingPublisher) PublishCheckin(_ context.Context, e models.CheckinEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkins = append(p.checkins, e)
	return p.err
}

func (p *recordingPublisher) PublishLifecycle(_ context.Context, e models.TicketLifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lifecycle = append(p.lifecycle, e)
	return p.err
}

func (p *recordingPublisher) lifecycleTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.lifecycle {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store     *db.DB
	svc       *tickets.TicketService
	clock     *utils.FixedClock
	publisher *recordingPublisher
	event     *models.Event
	tt        *models.TicketType
	crew      *models.Staff
	admin     *models.Staff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bunDB := dbtest.New(t)
	event := dbtest.Event(t, bunDB, "Summer Sessions")
	tt := dbtest.TicketType(t, bunDB, event, nil)
	store := db.New(bunDB, 5*time.Second)
	clock := utils.NewFixedClock(doorOpens)
	publisher := &recordingPublisher{}

	return &fixture{
		store:     store,
		svc:       tickets.NewTicketService(store, codegen.New(8, 5), publisher, clock, logger.NewWriterLogger(io.Discard)),
		clock:     clock,
		publisher: publisher,
		event:     event,
		tt:        tt,
		crew:      dbtest.Staff(t, bunDB, "sub-crew", models.RoleCrew, "Dana"),
		admin:     dbtest.Staff(t, bunDB, "sub-admin", models.RoleAdmin, "Morgan"),
	}
}

func (f *fixture) ticket(t *testing.T, mutate func(*models.Ticket)) *models.Ticket {
	return dbtest.Ticket(t, f.store.Bun, f.tt, mutate)
}

func (f *fixture) reload(t *testing.T, id string) *models.Ticket {
	t.Helper()
	got, err := f.store.GetTicketByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	return got
}
