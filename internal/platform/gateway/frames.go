package gateway

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"standcheck/internal/common"
)

// Command kinds sent to the gateway.
const (
	cmdLogOn uint64 = iota + 1
	cmdGuardCode
	cmdFreeLicense
	cmdGamesPlayed
	cmdGCMessage
	cmdLogOff
)

// Event kinds received from the gateway.
const (
	evtDisconnected uint64 = iota + 1
	evtError
	evtGuardChallenge
	evtWebSession
	evtEntitlements
	evtAppLaunched
	evtGCMessage
)

// command is one client-to-gateway frame. Unused fields stay zero and are
// omitted from the wire form.
type command struct {
	Kind        uint64
	Login       string
	Password    string
	Code        string
	ChallengeID uint64
	AppID       uint32
	MsgType     uint32
	Payload     []byte
}

// event is one gateway-to-client frame.
type event struct {
	Kind            uint64
	Code            int32
	Message         string
	Domain          string
	ChallengeID     uint64
	PlayerID        uint64
	Cookies         []string
	DisplayName     string
	CommunityBanned bool
	AppID           uint32
	MsgType         uint32
	Payload         []byte
}

const (
	fieldCmdKind        = 1
	fieldCmdLogin       = 2
	fieldCmdPassword    = 3
	fieldCmdCode        = 4
	fieldCmdChallengeID = 5
	fieldCmdAppID       = 6
	fieldCmdMsgType     = 7
	fieldCmdPayload     = 8
)

const (
	fieldEvtKind            = 1
	fieldEvtCode            = 2
	fieldEvtMessage         = 3
	fieldEvtDomain          = 4
	fieldEvtChallengeID     = 5
	fieldEvtPlayerID        = 6
	fieldEvtCookies         = 7
	fieldEvtDisplayName     = 8
	fieldEvtCommunityBanned = 9
	fieldEvtAppID           = 10
	fieldEvtMsgType         = 11
	fieldEvtPayload         = 12
)

func appendCommand(c *command) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCmdKind, protowire.VarintType)
	b = protowire.AppendVarint(b, c.Kind)
	if c.Login != "" {
		b = protowire.AppendTag(b, fieldCmdLogin, protowire.BytesType)
		b = protowire.AppendString(b, c.Login)
	}
	if c.Password != "" {
		b = protowire.AppendTag(b, fieldCmdPassword, protowire.BytesType)
		b = protowire.AppendString(b, c.Password)
	}
	if c.Code != "" {
		b = protowire.AppendTag(b, fieldCmdCode, protowire.BytesType)
		b = protowire.AppendString(b, c.Code)
	}
	if c.ChallengeID != 0 {
		b = protowire.AppendTag(b, fieldCmdChallengeID, protowire.VarintType)
		b = protowire.AppendVarint(b, c.ChallengeID)
	}
	if c.AppID != 0 {
		b = protowire.AppendTag(b, fieldCmdAppID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.AppID))
	}
	if c.MsgType != 0 {
		b = protowire.AppendTag(b, fieldCmdMsgType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(c.MsgType))
	}
	if len(c.Payload) > 0 {
		b = protowire.AppendTag(b, fieldCmdPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, c.Payload)
	}
	return b
}

func parseCommand(b []byte) (*command, error) {
	c := &command{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, frameErr("command", n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, frameErr("command", n)
			}
			switch num {
			case fieldCmdKind:
				c.Kind = v
			case fieldCmdChallengeID:
				c.ChallengeID = v
			case fieldCmdAppID:
				c.AppID = uint32(v)
			case fieldCmdMsgType:
				c.MsgType = uint32(v)
			}
			b = b[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, frameErr("command", n)
			}
			switch num {
			case fieldCmdLogin:
				c.Login = string(raw)
			case fieldCmdPassword:
				c.Password = string(raw)
			case fieldCmdCode:
				c.Code = string(raw)
			case fieldCmdPayload:
				c.Payload = append([]byte(nil), raw...)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, frameErr("command", n)
			}
			b = b[n:]
		}
	}
	if c.Kind == 0 {
		return nil, fmt.Errorf("command without kind: %w", common.ErrSchema)
	}
	return c, nil
}

func appendEvent(e *event) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldEvtKind, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Kind)
	if e.Code != 0 {
		b = protowire.AppendTag(b, fieldEvtCode, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(uint32(e.Code)))
	}
	if e.Message != "" {
		b = protowire.AppendTag(b, fieldEvtMessage, protowire.BytesType)
		b = protowire.AppendString(b, e.Message)
	}
	if e.Domain != "" {
		b = protowire.AppendTag(b, fieldEvtDomain, protowire.BytesType)
		b = protowire.AppendString(b, e.Domain)
	}
	if e.ChallengeID != 0 {
		b = protowire.AppendTag(b, fieldEvtChallengeID, protowire.VarintType)
		b = protowire.AppendVarint(b, e.ChallengeID)
	}
	if e.PlayerID != 0 {
		b = protowire.AppendTag(b, fieldEvtPlayerID, protowire.VarintType)
		b = protowire.AppendVarint(b, e.PlayerID)
	}
	for _, c := range e.Cookies {
		b = protowire.AppendTag(b, fieldEvtCookies, protowire.BytesType)
		b = protowire.AppendString(b, c)
	}
	if e.DisplayName != "" {
		b = protowire.AppendTag(b, fieldEvtDisplayName, protowire.BytesType)
		b = protowire.AppendString(b, e.DisplayName)
	}
	if e.CommunityBanned {
		b = protowire.AppendTag(b, fieldEvtCommunityBanned, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	if e.AppID != 0 {
		b = protowire.AppendTag(b, fieldEvtAppID, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.AppID))
	}
	if e.MsgType != 0 {
		b = protowire.AppendTag(b, fieldEvtMsgType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.MsgType))
	}
	if len(e.Payload) > 0 {
		b = protowire.AppendTag(b, fieldEvtPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, e.Payload)
	}
	return b
}

func parseEvent(b []byte) (*event, error) {
	e := &event{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, frameErr("event", n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, frameErr("event", n)
			}
			switch num {
			case fieldEvtKind:
				e.Kind = v
			case fieldEvtCode:
				e.Code = int32(uint32(v))
			case fieldEvtChallengeID:
				e.ChallengeID = v
			case fieldEvtPlayerID:
				e.PlayerID = v
			case fieldEvtCommunityBanned:
				e.CommunityBanned = v != 0
			case fieldEvtAppID:
				e.AppID = uint32(v)
			case fieldEvtMsgType:
				e.MsgType = uint32(v)
			}
			b = b[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, frameErr("event", n)
			}
			switch num {
			case fieldEvtMessage:
				e.Message = string(raw)
			case fieldEvtDomain:
				e.Domain = string(raw)
			case fieldEvtCookies:
				e.Cookies = append(e.Cookies, string(raw))
			case fieldEvtDisplayName:
				e.DisplayName = string(raw)
			case fieldEvtPayload:
				e.Payload = append([]byte(nil), raw...)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, frameErr("event", n)
			}
			b = b[n:]
		}
	}
	if e.Kind == 0 {
		return nil, fmt.Errorf("event without kind: %w", common.ErrSchema)
	}
	return e, nil
}

func frameErr(what string, n int) error {
	return fmt.Errorf("%s frame: %v: %w", what, protowire.ParseError(n), common.ErrSchema)
}
