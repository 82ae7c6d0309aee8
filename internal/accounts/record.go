// Package accounts keeps the verified account roster: encrypted persistence
// of credentials plus the latest verification snapshot, and the service that
// drives checks against the platform.
package accounts

import (
	"time"

	"standcheck/internal/checker"
)

// PenaltyPermanent is the penalty_seconds value marking a ban that never
// expires. Zero means no penalty; any positive value is the unix expiry time.
const PenaltyPermanent int64 = -1

// Record is one stored account. The JSON field names are the on-disk vault
// format and must stay stable across releases.
type Record struct {
	// Login is the vault key, not part of the encrypted value.
	Login string `json:"-"`

	Password     string   `json:"password"`
	SharedSecret string   `json:"sharedSecret,omitempty"`
	Tags         []string `json:"tags,omitempty"`

	Prime          bool   `json:"prime"`
	PenaltyReason  string `json:"penalty_reason,omitempty"`
	PenaltySeconds int64  `json:"penalty_seconds"`

	Wins int32 `json:"wins"`
	Rank int32 `json:"rank"`

	WinsWingman int32 `json:"wins_wg"`
	RankWingman int32 `json:"rank_wg"`

	WinsDangerZone int32 `json:"wins_dz"`
	RankDangerZone int32 `json:"rank_dz"`

	LastGame           int64 `json:"last_game,omitempty"`
	LastGameWingman    int64 `json:"last_game_wg,omitempty"`
	LastGameDangerZone int64 `json:"last_game_dz,omitempty"`

	Name     string `json:"name,omitempty"`
	Level    int32  `json:"lvl"`
	PlayerID uint64 `json:"steamid,omitempty"`

	// Error is the message of the last failed check, cleared on success.
	Error string `json:"error,omitempty"`

	CheckedAt int64 `json:"checked_at,omitempty"`

	// Pending is set by List while a check for this login is in flight.
	Pending bool `json:"-"`
}

// Banned reports whether the record carries a penalty still in force at now.
func (r *Record) Banned(now time.Time) bool {
	if r.PenaltyReason == "" {
		return false
	}
	if r.PenaltySeconds == PenaltyPermanent {
		return true
	}
	return r.PenaltySeconds > 0 && now.Unix() < r.PenaltySeconds
}

// ApplyResult merges a resolved verification into the record and clears the
// last error.
func (r *Record) ApplyResult(res *checker.Result, now time.Time) {
	r.Prime = res.Prime

	r.PenaltyReason = res.Penalty.Reason
	switch {
	case res.Penalty.Permanent:
		r.PenaltySeconds = PenaltyPermanent
	case !res.Penalty.ExpiresAt.IsZero():
		r.PenaltySeconds = res.Penalty.ExpiresAt.Unix()
	default:
		r.PenaltySeconds = 0
	}

	r.Wins = res.Competitive.Wins
	r.Rank = res.Competitive.Rank
	r.WinsWingman = res.Wingman.Wins
	r.RankWingman = res.Wingman.Rank
	r.WinsDangerZone = res.DangerZone.Wins
	r.RankDangerZone = res.DangerZone.Rank

	r.LastGame = unixOrZero(res.Competitive.LastPlayed)
	r.LastGameWingman = unixOrZero(res.Wingman.LastPlayed)
	r.LastGameDangerZone = unixOrZero(res.DangerZone.LastPlayed)

	r.Name = res.DisplayName
	r.Level = res.Level
	r.PlayerID = res.PlayerID

	r.Error = ""
	r.CheckedAt = now.Unix()
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
