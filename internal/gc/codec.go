package gc

import (
	"fmt"

	"standcheck/internal/common"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decode parses a coordinator payload for the given message type. Unknown
// message types and malformed payloads both wrap common.ErrSchema; the
// session treats either as fatal for the current attempt.
func Decode(msgType uint32, payload []byte) (Message, error) {
	switch msgType {
	case MsgClientWelcome:
		return decodeClientWelcome(payload)
	case MsgMatchmakingHelloResponse:
		return decodeMatchmakingHelloResponse(payload)
	case MsgRankUpdate:
		return decodeRankUpdate(payload)
	default:
		return nil, fmt.Errorf("message type %d: %w", msgType, common.ErrSchema)
	}
}

// Encode serializes a coordinator message. Encoding is pure and always
// succeeds for the message types defined in this package.
func Encode(msg Message) []byte {
	switch m := msg.(type) {
	case ClientHello, *ClientHello, MatchmakingHello, *MatchmakingHello:
		return []byte{}
	case *RankUpdate:
		var b []byte
		for i := range m.Rankings {
			b = protowire.AppendTag(b, fieldRankUpdateRankings, protowire.BytesType)
			b = protowire.AppendBytes(b, appendPlayerRanking(nil, &m.Rankings[i]))
		}
		return b
	case RankUpdate:
		return Encode(&m)
	default:
		panic(fmt.Sprintf("gc: cannot encode message type %d", msg.MsgType()))
	}
}

// Wire field numbers of the coordinator schemas. These are fixed externally
// and must not change.
const (
	fieldWelcomeVersion  = 1
	fieldWelcomeOutdated = 3

	fieldCacheObjects = 2

	fieldObjectTypeID = 1
	fieldObjectData   = 2

	fieldAccountBonusXPUsedFlags = 13
	fieldAccountElevatedState    = 14

	fieldHelloAccountID      = 1
	fieldHelloPenaltySeconds = 4
	fieldHelloPenaltyReason  = 5
	fieldHelloVACBanned      = 6
	fieldHelloRanking        = 7
	fieldHelloPlayerLevel    = 10

	fieldRankingAccountID  = 1
	fieldRankingRankID     = 2
	fieldRankingWins       = 3
	fieldRankingRankTypeID = 6

	fieldRankUpdateRankings = 1
)

func schemaErr(what string, n int) error {
	return fmt.Errorf("%s: %v: %w", what, protowire.ParseError(n), common.ErrSchema)
}

// walkFields iterates the fields of a protobuf-encoded buffer, calling fn
// for each tag with the remaining buffer positioned at the value. fn returns
// the number of bytes it consumed, or a negative protowire error; returning
// 0 makes walkFields skip the field generically.
func walkFields(what string, b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return schemaErr(what, n)
		}
		b = b[n:]

		m := fn(num, typ, b)
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return schemaErr(what, m)
		}
		b = b[m:]
	}
	return nil
}

func decodeClientWelcome(payload []byte) (*ClientWelcome, error) {
	w := &ClientWelcome{}
	err := walkFields("welcome", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == fieldWelcomeVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				w.Version = int32(v)
			}
			return n
		case num == fieldWelcomeOutdated && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			cache, err := decodeSubscribedCache(raw)
			if err != nil {
				return -1
			}
			w.Caches = append(w.Caches, *cache)
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func decodeSubscribedCache(payload []byte) (*SubscribedCache, error) {
	c := &SubscribedCache{}
	err := walkFields("subscribed cache", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == fieldCacheObjects && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			obj, err := decodeCacheObject(raw)
			if err != nil {
				return -1
			}
			c.Objects = append(c.Objects, *obj)
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func decodeCacheObject(payload []byte) (*CacheObject, error) {
	o := &CacheObject{}
	err := walkFields("cache object", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == fieldObjectTypeID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				o.TypeID = int32(v)
			}
			return n
		case num == fieldObjectData && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			data := make([]byte, len(raw))
			copy(data, raw)
			o.ObjectData = append(o.ObjectData, data)
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DecodeGameAccountClient parses the entitlement-state object carried inside
// a welcome cache object of type CacheTypeGameAccount.
func DecodeGameAccountClient(payload []byte) (*GameAccountClient, error) {
	g := &GameAccountClient{}
	err := walkFields("game account client", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == fieldAccountBonusXPUsedFlags && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				g.BonusXPUsedFlags = uint32(v)
			}
			return n
		case num == fieldAccountElevatedState && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n >= 0 {
				g.ElevatedState = uint32(v)
			}
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func decodeMatchmakingHelloResponse(payload []byte) (*MatchmakingHelloResponse, error) {
	h := &MatchmakingHelloResponse{}
	err := walkFields("matchmaking hello", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return n
			}
			switch num {
			case fieldHelloAccountID:
				h.AccountID = uint32(v)
			case fieldHelloPenaltySeconds:
				h.PenaltySeconds = uint32(v)
			case fieldHelloPenaltyReason:
				h.PenaltyReason = uint32(v)
			case fieldHelloVACBanned:
				h.VACBanned = v != 0
			case fieldHelloPlayerLevel:
				h.PlayerLevel = uint32(v)
			default:
				return 0
			}
			return n
		case num == fieldHelloRanking && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			r, err := decodePlayerRanking(raw)
			if err != nil {
				return -1
			}
			h.Ranking = r
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

func decodePlayerRanking(payload []byte) (*PlayerRanking, error) {
	r := &PlayerRanking{}
	err := walkFields("player ranking", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if typ != protowire.VarintType {
			return 0
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return n
		}
		switch num {
		case fieldRankingAccountID:
			r.AccountID = uint32(v)
		case fieldRankingRankID:
			r.RankID = uint32(v)
		case fieldRankingWins:
			r.Wins = uint32(v)
		case fieldRankingRankTypeID:
			r.RankTypeID = uint32(v)
		default:
			return 0
		}
		return n
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func decodeRankUpdate(payload []byte) (*RankUpdate, error) {
	u := &RankUpdate{}
	err := walkFields("rank update", payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == fieldRankUpdateRankings && typ == protowire.BytesType {
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			r, err := decodePlayerRanking(raw)
			if err != nil {
				return -1
			}
			u.Rankings = append(u.Rankings, *r)
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func appendPlayerRanking(b []byte, r *PlayerRanking) []byte {
	if r.AccountID != 0 {
		b = protowire.AppendTag(b, fieldRankingAccountID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.AccountID))
	}
	if r.RankID != 0 {
		b = protowire.AppendTag(b, fieldRankingRankID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.RankID))
	}
	if r.Wins != 0 {
		b = protowire.AppendTag(b, fieldRankingWins, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.Wins))
	}
	if r.RankTypeID != 0 {
		b = protowire.AppendTag(b, fieldRankingRankTypeID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.RankTypeID))
	}
	return b
}

// Test and gateway helpers below build wire-format payloads for messages the
// checker itself only ever decodes.

// AppendWelcome serializes a ClientWelcome.
func AppendWelcome(w *ClientWelcome) []byte {
	var b []byte
	if w.Version != 0 {
		b = protowire.AppendTag(b, fieldWelcomeVersion, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(w.Version))
	}
	for _, c := range w.Caches {
		var cb []byte
		for _, o := range c.Objects {
			var ob []byte
			ob = protowire.AppendTag(ob, fieldObjectTypeID, protowire.VarintType)
			ob = protowire.AppendVarint(ob, uint64(o.TypeID))
			for _, d := range o.ObjectData {
				ob = protowire.AppendTag(ob, fieldObjectData, protowire.BytesType)
				ob = protowire.AppendBytes(ob, d)
			}
			cb = protowire.AppendTag(cb, fieldCacheObjects, protowire.BytesType)
			cb = protowire.AppendBytes(cb, ob)
		}
		b = protowire.AppendTag(b, fieldWelcomeOutdated, protowire.BytesType)
		b = protowire.AppendBytes(b, cb)
	}
	return b
}

// AppendGameAccountClient serializes an entitlement-state object.
func AppendGameAccountClient(g *GameAccountClient) []byte {
	var b []byte
	if g.BonusXPUsedFlags != 0 {
		b = protowire.AppendTag(b, fieldAccountBonusXPUsedFlags, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(g.BonusXPUsedFlags))
	}
	if g.ElevatedState != 0 {
		b = protowire.AppendTag(b, fieldAccountElevatedState, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(g.ElevatedState))
	}
	return b
}

// AppendMatchmakingHelloResponse serializes a matchmaking hello response.
func AppendMatchmakingHelloResponse(h *MatchmakingHelloResponse) []byte {
	var b []byte
	if h.AccountID != 0 {
		b = protowire.AppendTag(b, fieldHelloAccountID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.AccountID))
	}
	if h.PenaltySeconds != 0 {
		b = protowire.AppendTag(b, fieldHelloPenaltySeconds, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.PenaltySeconds))
	}
	if h.PenaltyReason != 0 {
		b = protowire.AppendTag(b, fieldHelloPenaltyReason, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.PenaltyReason))
	}
	if h.VACBanned {
		b = protowire.AppendTag(b, fieldHelloVACBanned, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if h.Ranking != nil {
		b = protowire.AppendTag(b, fieldHelloRanking, protowire.BytesType)
		b = protowire.AppendBytes(b, appendPlayerRanking(nil, h.Ranking))
	}
	if h.PlayerLevel != 0 {
		b = protowire.AppendTag(b, fieldHelloPlayerLevel, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.PlayerLevel))
	}
	return b
}
