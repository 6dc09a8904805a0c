package awakener

import (
	"time"

	"github.com/google/uuid"
)

// NewID generates a globally unique, time-sortable UUIDv7 (RFC 9562).
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NowUTC returns the current UTC time formatted as RFC 3339.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
