// Package history keeps an audit trail of completed verification checks in
// PostgreSQL. It is optional: deployments without a DSN simply never
// construct a repository.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"standcheck/internal/accounts"
)

// OutcomeOK marks a check that resolved successfully.
const OutcomeOK = "ok"

// Entry is one completed check, successful or not.
type Entry struct {
	ID            uuid.UUID
	Login         string
	Outcome       string
	PenaltyReason string
	Prime         bool

	Wins           int32
	WinsWingman    int32
	WinsDangerZone int32

	CheckedAt time.Time
}

// Repository stores and queries check history.
type Repository interface {
	Record(ctx context.Context, e *Entry) error

	// Recent returns the newest entries first. An empty login matches all
	// accounts.
	Recent(ctx context.Context, login string, limit int) ([]Entry, error)
}

// EntryFromCheck maps a completed check to an audit entry. On failure the
// outcome carries the error message and the snapshot fields reflect whatever
// was cached for the account.
func EntryFromCheck(login string, rec *accounts.Record, checkErr error) *Entry {
	e := &Entry{
		Login:   login,
		Outcome: OutcomeOK,
	}
	if checkErr != nil {
		e.Outcome = checkErr.Error()
	}
	if rec != nil {
		e.PenaltyReason = rec.PenaltyReason
		e.Prime = rec.Prime
		e.Wins = rec.Wins
		e.WinsWingman = rec.WinsWingman
		e.WinsDangerZone = rec.WinsDangerZone
	}
	return e
}
