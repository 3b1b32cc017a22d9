package utils

import (
	"ms-admission/internal/models"

	"github.com/google/uuid"
)

// GenerateID returns a random UUID v4 string used as a primary key.
func GenerateID() string {
	return uuid.NewString()
}

// ManualSessionID builds the synthetic payment session id of a staff-issued
// ticket. A caller-supplied idempotency key makes retries resolve to the same
// ticket.
func ManualSessionID(idempotencyKey string) string {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	return models.ManualSessionPrefix + idempotencyKey
}
