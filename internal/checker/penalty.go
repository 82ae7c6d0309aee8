package checker

import (
	"fmt"
	"time"

	"standcheck/internal/gc"
)

// In-game penalty reason codes that never expire.
const (
	reasonUntrusted      = 8
	reasonOverwatchCheat = 10
	reasonUntrustedAlt   = 14
)

// penaltyReasonString maps an in-game penalty reason code to its display
// string. Zero means no penalty.
func penaltyReasonString(id uint32) string {
	switch id {
	case 0:
		return ""
	case 1:
		return "Kicked"
	case 2:
		return "TK Limit"
	case 3:
		return "TK Spawn"
	case 4:
		return "Disconnected Too Long"
	case 5:
		return "Abandon"
	case 6:
		return "TD Limit"
	case 7:
		return "TD Spawn"
	case reasonUntrusted, reasonUntrustedAlt:
		return "Untrusted"
	case 9:
		return "Kicked Too Much"
	case reasonOverwatchCheat:
		return "Overwatch (Cheat)"
	case 11:
		return "Overwatch (Grief)"
	case 16:
		return "Failed To Connect"
	case 17:
		return "Kick Abuse"
	case 18, 19, 20:
		return "Rank Calibration"
	case 21:
		return "Reports (Grief)"
	default:
		return fmt.Sprintf("Unknown(%d)", id)
	}
}

// penaltyReasonPermanent reports whether an in-game reason code means a
// permanent ban regardless of any supplied countdown.
func penaltyReasonPermanent(id uint32) bool {
	switch id {
	case reasonUntrusted, reasonOverwatchCheat, reasonUntrustedAlt:
		return true
	default:
		return false
	}
}

// classifyPenalty turns the coordinator's matchmaking standing plus the
// platform community-ban flag into a Penalty. Priority: community bans
// outrank in-game penalties, which outrank VAC bans.
func classifyPenalty(communityBanned bool, msg *gc.MatchmakingHelloResponse, now time.Time) Penalty {
	var p Penalty
	switch {
	case communityBanned:
		p.Reason = "Community banned"
	case msg.PenaltyReason > 0:
		p.Reason = penaltyReasonString(msg.PenaltyReason)
	case msg.VACBanned:
		p.Reason = "VAC"
	default:
		return Penalty{}
	}

	if msg.VACBanned || communityBanned || penaltyReasonPermanent(msg.PenaltyReason) {
		p.Permanent = true
	} else if msg.PenaltySeconds > 0 {
		p.ExpiresAt = now.Add(time.Duration(msg.PenaltySeconds) * time.Second)
	}
	return p
}
