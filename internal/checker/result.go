// Package checker drives account verifications: one Session per check runs
// the logon and coordinator handshake as an explicit state machine, and the
// Supervisor enforces at most one active session per login.
package checker

import "time"

// BanSentinel marks wins/rank values hidden by a platform-wide ban.
const BanSentinel int32 = -1

// ModeStats is the competitive standing in one game mode. LastPlayed is
// best-effort enrichment and may stay zero.
type ModeStats struct {
	Wins       int32
	Rank       int32
	LastPlayed time.Time
}

// Penalty is the classified ban state of an account.
type Penalty struct {
	// Reason is empty when the account is not banned, otherwise a
	// human-readable classification ("Community banned", "VAC", or an
	// in-game penalty reason).
	Reason string

	// Permanent is set for bans with no expiry.
	Permanent bool

	// ExpiresAt is the absolute expiry of a timed ban; zero otherwise.
	ExpiresAt time.Time
}

// Banned reports whether any penalty applies.
func (p Penalty) Banned() bool {
	return p.Reason != ""
}

// Result is a fully resolved verification. A Session hands it out only once
// all three modes and the account identity are populated; partial results
// are never surfaced.
type Result struct {
	Prime bool

	Penalty Penalty

	Competitive ModeStats
	Wingman     ModeStats
	DangerZone  ModeStats

	DisplayName string
	Level       int32
	PlayerID    uint64
}
