// Package gc encodes and decodes the fixed set of coordinator messages used
// by the verification handshake. The schemas are a small closed set, so the
// wire format is handled directly with protowire instead of generated stubs.
package gc

// Coordinator message-type identifiers. Anything outside this set is ignored
// by sessions, not treated as an error.
const (
	MsgClientHello              uint32 = 4006
	MsgClientWelcome            uint32 = 4004
	MsgMatchmakingHello         uint32 = 9109
	MsgMatchmakingHelloResponse uint32 = 9110
	MsgRankUpdate               uint32 = 9194
)

// Cache object type identifier for the per-account entitlement state object
// embedded in the welcome message.
const CacheTypeGameAccount int32 = 7

// Rank type identifiers for the secondary game modes. The primary
// (competitive) ranking arrives inline in the matchmaking hello response.
const (
	RankTypeWingman    uint32 = 7
	RankTypeDangerZone uint32 = 10
)

// Message is a coordinator message that knows its own type identifier.
type Message interface {
	MsgType() uint32
}

// ClientHello opens the coordinator session. Empty body.
type ClientHello struct{}

func (ClientHello) MsgType() uint32 { return MsgClientHello }

// ClientWelcome is the coordinator's reply to ClientHello. Only the
// subscribed cache payloads are of interest here.
type ClientWelcome struct {
	Version int32
	Caches  []SubscribedCache
}

func (ClientWelcome) MsgType() uint32 { return MsgClientWelcome }

// SubscribedCache is one out-of-date cache bundle inside a welcome.
type SubscribedCache struct {
	Objects []CacheObject
}

// CacheObject is a typed blob inside a subscribed cache.
type CacheObject struct {
	TypeID     int32
	ObjectData [][]byte
}

// GameAccountClient is the entitlement-state object (CacheTypeGameAccount)
// carried inside a welcome cache. The prime entitlement is derived from it.
type GameAccountClient struct {
	BonusXPUsedFlags uint32
	ElevatedState    uint32
}

// Elevated-state value meaning the entitlement was purchased outright.
const ElevatedStatePurchased uint32 = 5

// Bonus-experience flag bit granted alongside the entitlement.
const BonusFlagPrestigeEarned uint32 = 16

// Prime reports whether the account holds the prime entitlement.
func (g *GameAccountClient) Prime() bool {
	return g.BonusXPUsedFlags&BonusFlagPrestigeEarned != 0 ||
		g.ElevatedState == ElevatedStatePurchased
}

// MatchmakingHello requests the matchmaking profile. Empty body.
type MatchmakingHello struct{}

func (MatchmakingHello) MsgType() uint32 { return MsgMatchmakingHello }

// MatchmakingHelloResponse carries the account's matchmaking standing.
// Ranking is nil when the coordinator has not resolved ranking data yet.
type MatchmakingHelloResponse struct {
	AccountID      uint32
	PenaltySeconds uint32
	PenaltyReason  uint32
	VACBanned      bool
	Ranking        *PlayerRanking
	PlayerLevel    uint32
}

func (MatchmakingHelloResponse) MsgType() uint32 { return MsgMatchmakingHelloResponse }

// PlayerRanking is one per-mode ranking record.
type PlayerRanking struct {
	AccountID  uint32
	RankID     uint32
	Wins       uint32
	RankTypeID uint32
}

// RankUpdate is used in both directions: as a request it lists the rank
// types to fetch (rank type id only), as a response it carries the filled-in
// ranking records.
type RankUpdate struct {
	Rankings []PlayerRanking
}

func (RankUpdate) MsgType() uint32 { return MsgRankUpdate }
