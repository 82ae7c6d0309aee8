package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standcheck/internal/common"
)

func TestCommand_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cmd  command
	}{
		{"logon", command{Kind: cmdLogOn, Login: "alice", Password: "pw"}},
		{"guard code", command{Kind: cmdGuardCode, Code: "R34DY", ChallengeID: 7}},
		{"license", command{Kind: cmdFreeLicense, AppID: 730}},
		{"gc message", command{Kind: cmdGCMessage, AppID: 730, MsgType: 4006, Payload: []byte{1, 2, 3}}},
		{"logoff", command{Kind: cmdLogOff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand(appendCommand(&tt.cmd))
			require.NoError(t, err)
			assert.Equal(t, &tt.cmd, got)
		})
	}
}

func TestEvent_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		evt  event
	}{
		{"disconnected", event{Kind: evtDisconnected, Code: 3, Message: "reset"}},
		{"error", event{Kind: evtError, Code: 5}},
		{"guard challenge", event{Kind: evtGuardChallenge, Domain: "mail.example.com", ChallengeID: 9}},
		{"web session", event{Kind: evtWebSession, PlayerID: 42, Cookies: []string{"a=1", "b=2"}}},
		{"entitlements", event{Kind: evtEntitlements, PlayerID: 42, DisplayName: "p1", CommunityBanned: true}},
		{"app launched", event{Kind: evtAppLaunched, AppID: 730}},
		{"gc message", event{Kind: evtGCMessage, AppID: 730, MsgType: 4004, Payload: []byte{9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEvent(appendEvent(&tt.evt))
			require.NoError(t, err)
			assert.Equal(t, &tt.evt, got)
		})
	}
}

func TestParse_MissingKind(t *testing.T) {
	_, err := parseCommand(nil)
	assert.True(t, errors.Is(err, common.ErrSchema))

	_, err = parseEvent(nil)
	assert.True(t, errors.Is(err, common.ErrSchema))
}

func TestParse_Malformed(t *testing.T) {
	_, err := parseCommand([]byte{0xff})
	assert.True(t, errors.Is(err, common.ErrSchema))

	_, err = parseEvent([]byte{0xff})
	assert.True(t, errors.Is(err, common.ErrSchema))
}
