package codegen_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ms-admission/internal/database/dbtest"
	"ms-admission/internal/models"
	"ms-admission/internal/tickets/codegen"
	"ms-admission/internal/tickets/db"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockInserter struct {
	mock.Mock
}

func (m *MockInserter) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	args := m.Called(ctx, ticket)
	return args.Error(0)
}

func codeCollision() error {
	return &pq.Error{Code: "23505", Constraint: "ux_tickets_code"}
}

func TestCodeShapeAndAlphabet(t *testing.T) {
	g := codegen.New(8, 5)
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		code, err := g.Code()
		require.NoError(t, err)
		assert.True(t, codegen.Valid(code, 8), code)
		assert.False(t, strings.ContainsAny(code, "0O1IL"), code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 495)
}

func TestAlphabetSize(t *testing.T) {
	assert.Len(t, codegen.Alphabet, 31)
}

func TestInsertRetriesOnCodeCollision(t *testing.T) {
	store := new(MockInserter)
	store.On("CreateTicket", mock.Anything, mock.Anything).Return(codeCollision()).Twice()
	store.On("CreateTicket", mock.Anything, mock.Anything).Return(nil).Once()

	ticket := &models.Ticket{ID: "t1"}
	err := codegen.New(8, 5).Insert(context.Background(), store, ticket)

	require.NoError(t, err)
	assert.Len(t, ticket.Code, 8)
	store.AssertNumberOfCalls(t, "CreateTicket", 3)
}

func TestInsertGivesUpAfterMaxAttempts(t *testing.T) {
	store := new(MockInserter)
	store.On("CreateTicket", mock.Anything, mock.Anything).Return(codeCollision())

	ticket := &models.Ticket{ID: "t1"}
	err := codegen.New(8, 3).Insert(context.Background(), store, ticket)

	assert.ErrorIs(t, err, models.ErrCodeGenerationExhausted)
	assert.Empty(t, ticket.Code)
	store.AssertNumberOfCalls(t, "CreateTicket", 3)
}

func TestInsertDoesNotRetryOtherErrors(t *testing.T) {
	sessionTaken := &pq.Error{Code: "23505", Constraint: "ux_tickets_payment_session_live"}
	for _, cause := range []error{sessionTaken, errors.New("connection reset")} {
		store := new(MockInserter)
		store.On("CreateTicket", mock.Anything, mock.Anything).Return(cause).Once()

		err := codegen.New(8, 5).Insert(context.Background(), store, &models.Ticket{})

		assert.ErrorIs(t, err, cause)
		store.AssertNumberOfCalls(t, "CreateTicket", 1)
	}
}

// sqlite reports collisions differently from Postgres; exercise the real
// store with a one-symbol generator so every second draw collides.
func TestInsertAgainstStoreCollisions(t *testing.T) {
	bunDB := dbtest.New(t)
	event := dbtest.Event(t, bunDB, "Night")
	tt := dbtest.TicketType(t, bunDB, event, nil)
	store := db.New(bunDB, time.Second)
	g := codegen.New(1, 40)

	codes := map[string]bool{}
	for i := 0; i < 5; i++ {
		ticket := &models.Ticket{
			ID:               uuid.NewString(),
			EventID:          event.ID,
			TicketTypeID:     tt.ID,
			BuyerName:        "Ada",
			BuyerEmail:       "ada@example.com",
			PaymentSessionID: "cs_" + uuid.NewString(),
			Status:           models.TicketStatusValid,
			CreatedAt:        time.Now().UTC(),
		}
		require.NoError(t, g.Insert(context.Background(), store, ticket))
		assert.False(t, codes[ticket.Code], "duplicate code returned")
		codes[ticket.Code] = true
	}
}
