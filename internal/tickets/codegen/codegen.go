// Package codegen produces human-readable ticket codes and inserts tickets
// under them, retrying on collisions.
package codegen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"ms-admission/internal/database"
	"ms-admission/internal/models"
)

// Alphabet omits 0, O, 1, I and L so codes survive being read aloud or
// typed from a phone screen.
const Alphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

const (
	DefaultLength      = 8
	DefaultMaxAttempts = 5
)

// Inserter persists a ticket. It must return the driver's unique violation
// unchanged when the code is taken.
type Inserter interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
}

type Generator struct {
	Length      int
	MaxAttempts int
}

func New(length, maxAttempts int) *Generator {
	if length <= 0 {
		length = DefaultLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Generator{Length: length, MaxAttempts: maxAttempts}
}

// Code draws one random code.
func (g *Generator) Code() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	out := make([]byte, g.Length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		out[i] = Alphabet[n.Int64()]
	}
	return string(out), nil
}

// Insert assigns a fresh code to ticket and inserts it, drawing a new code
// whenever the insert loses on the code index. Any other error, including a
// payment session collision, is returned as is.
func (g *Generator) Insert(ctx context.Context, store Inserter, ticket *models.Ticket) error {
	for attempt := 0; attempt < g.MaxAttempts; attempt++ {
		code, err := g.Code()
		if err != nil {
			return err
		}
		ticket.Code = code

		err = store.CreateTicket(ctx, ticket)
		if err == nil {
			return nil
		}
		if !database.IsUniqueViolation(err, database.ConstraintTicketCode) {
			return err
		}
	}
	ticket.Code = ""
	return fmt.Errorf("%w after %d attempts", models.ErrCodeGenerationExhausted, g.MaxAttempts)
}

// Valid reports whether s could have been produced by a generator of the
// given length.
func Valid(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isAlphabet(s[i]) {
			return false
		}
	}
	return true
}

func isAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}

