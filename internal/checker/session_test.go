package checker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"standcheck/internal/common"
	"standcheck/internal/gc"
	"standcheck/internal/platform"
	"standcheck/internal/secondfactor"
)

const testAppID uint32 = 730

// fakeClient scripts the platform side of a session. Hooks run on the
// session goroutine; events pushed from them land in a buffered channel.
type fakeClient struct {
	events chan platform.Event

	mu       sync.Mutex
	sent     []sentGC
	played   []uint32
	logOffs  int
	licenses []uint32

	logOnErr   error
	licenseErr error
	sendErr    error
	logOffErr  error

	onLogOn func(c *fakeClient)
	onPlay  func(c *fakeClient, appID uint32)
	onSend  func(c *fakeClient, msgType uint32, payload []byte)
}

type sentGC struct {
	appID   uint32
	msgType uint32
	payload []byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan platform.Event, 64)}
}

func (c *fakeClient) emit(ev platform.Event) { c.events <- ev }

func (c *fakeClient) LogOn(ctx context.Context, creds platform.Credentials) error {
	if c.logOnErr != nil {
		return c.logOnErr
	}
	if c.onLogOn != nil {
		c.onLogOn(c)
	}
	return nil
}

func (c *fakeClient) Events() <-chan platform.Event { return c.events }

func (c *fakeClient) RequestFreeLicense(ctx context.Context, appID uint32) error {
	c.mu.Lock()
	c.licenses = append(c.licenses, appID)
	c.mu.Unlock()
	return c.licenseErr
}

func (c *fakeClient) SetGamesPlayed(appID uint32) {
	c.mu.Lock()
	c.played = append(c.played, appID)
	c.mu.Unlock()
	if c.onPlay != nil {
		c.onPlay(c, appID)
	}
}

func (c *fakeClient) SendToGC(appID, msgType uint32, payload []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.sent = append(c.sent, sentGC{appID: appID, msgType: msgType, payload: payload})
	c.mu.Unlock()
	if c.onSend != nil {
		c.onSend(c, msgType, payload)
	}
	return nil
}

func (c *fakeClient) LogOff() error {
	c.mu.Lock()
	c.logOffs++
	c.mu.Unlock()
	return c.logOffErr
}

func (c *fakeClient) sentOfType(msgType uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sent {
		if s.msgType == msgType {
			n++
		}
	}
	return n
}

func welcomePayload(elevatedState, bonusFlags uint32) []byte {
	acct := gc.AppendGameAccountClient(&gc.GameAccountClient{
		ElevatedState:    elevatedState,
		BonusXPUsedFlags: bonusFlags,
	})
	return gc.AppendWelcome(&gc.ClientWelcome{
		Caches: []gc.SubscribedCache{
			{Objects: []gc.CacheObject{{TypeID: gc.CacheTypeGameAccount, ObjectData: [][]byte{acct}}}},
		},
	})
}

func rankUpdatePayload(wingmanWins, wingmanRank, dzWins, dzRank uint32) []byte {
	return gc.Encode(&gc.RankUpdate{Rankings: []gc.PlayerRanking{
		{RankTypeID: gc.RankTypeWingman, Wins: wingmanWins, RankID: wingmanRank},
		{RankTypeID: gc.RankTypeDangerZone, Wins: dzWins, RankID: dzRank},
	}})
}

// scriptHappyPath wires a fake client that walks a session through the
// whole handshake: logon, license, app start, welcome, matchmaking hello
// and both secondary rank updates.
func scriptHappyPath(c *fakeClient, hello *gc.MatchmakingHelloResponse) {
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.EntitlementsReadyEvent{
			PlayerID:    76561198000000001,
			DisplayName: "player one",
		})
	}
	c.onPlay = func(c *fakeClient, appID uint32) {
		c.emit(platform.AppLaunchedEvent{AppID: appID})
	}
	c.onSend = func(c *fakeClient, msgType uint32, payload []byte) {
		switch msgType {
		case gc.MsgClientHello:
			c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgClientWelcome,
				Payload: welcomePayload(gc.ElevatedStatePurchased, 0)})
		case gc.MsgMatchmakingHello:
			c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgMatchmakingHelloResponse,
				Payload: gc.AppendMatchmakingHelloResponse(hello)})
		case gc.MsgRankUpdate:
			c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgRankUpdate,
				Payload: rankUpdatePayload(40, 8, 12, 4)})
		}
	}
}

func newTestSession(c *fakeClient, mutate func(*Config)) *Session {
	cfg := Config{
		Credentials: platform.Credentials{Login: "alice", Password: "pw"},
		AppID:       testAppID,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewSession(c, cfg)
}

func TestSession_ResolvesOnFirstAttempt(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{
		AccountID:   1,
		Ranking:     &gc.PlayerRanking{Wins: 150, RankID: 14},
		PlayerLevel: 21,
	})

	res, err := newTestSession(c, nil).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Penalty.Banned())
	assert.False(t, res.Penalty.Permanent)
	assert.True(t, res.Penalty.ExpiresAt.IsZero())

	assert.Equal(t, int32(150), res.Competitive.Wins)
	assert.Equal(t, int32(14), res.Competitive.Rank)
	assert.Equal(t, int32(40), res.Wingman.Wins)
	assert.Equal(t, int32(8), res.Wingman.Rank)
	assert.Equal(t, int32(12), res.DangerZone.Wins)
	assert.Equal(t, int32(4), res.DangerZone.Rank)

	assert.True(t, res.Prime)
	assert.Equal(t, "player one", res.DisplayName)
	assert.Equal(t, int32(21), res.Level)
	assert.Equal(t, uint64(76561198000000001), res.PlayerID)

	assert.Equal(t, []uint32{testAppID}, c.licenses)
	assert.Equal(t, []uint32{testAppID}, c.played)
	assert.Equal(t, 1, c.sentOfType(gc.MsgClientHello))
	assert.Equal(t, 1, c.sentOfType(gc.MsgMatchmakingHello))
	assert.Equal(t, 1, c.sentOfType(gc.MsgRankUpdate))
	assert.Equal(t, 1, c.logOffs)
}

func TestSession_VACBanPropagatesToAllModes(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{VACBanned: true})

	res, err := newTestSession(c, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "VAC", res.Penalty.Reason)
	assert.True(t, res.Penalty.Permanent)

	for _, stats := range []ModeStats{res.Competitive, res.Wingman, res.DangerZone} {
		assert.Equal(t, BanSentinel, stats.Wins)
		assert.Equal(t, BanSentinel, stats.Rank)
	}
	// A platform ban short-circuits the retry loop.
	assert.Equal(t, 1, c.sentOfType(gc.MsgMatchmakingHello))
}

func TestSession_RetryBudgetExhausted(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{PlayerLevel: 3}) // never any ranking

	res, err := newTestSession(c, nil).Run(context.Background())
	require.NoError(t, err)

	// Exactly 5 attempts, then unranked with zero wins.
	assert.Equal(t, 5, c.sentOfType(gc.MsgMatchmakingHello))
	assert.Equal(t, int32(0), res.Competitive.Wins)
	assert.Equal(t, int32(0), res.Competitive.Rank)
	assert.False(t, res.Penalty.Banned())
}

func TestSession_RetriesUntilRankingArrives(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, nil)

	// First two replies carry no ranking, the third does.
	replies := []*gc.MatchmakingHelloResponse{
		{},
		{},
		{Ranking: &gc.PlayerRanking{Wins: 77, RankID: 9}},
	}
	i := 0
	base := c.onSend
	c.onSend = func(c *fakeClient, msgType uint32, payload []byte) {
		if msgType == gc.MsgMatchmakingHello {
			c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgMatchmakingHelloResponse,
				Payload: gc.AppendMatchmakingHelloResponse(replies[i])})
			i++
			return
		}
		base(c, msgType, payload)
	}

	res, err := newTestSession(c, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, c.sentOfType(gc.MsgMatchmakingHello))
	assert.Equal(t, int32(77), res.Competitive.Wins)
	assert.Equal(t, int32(9), res.Competitive.Rank)
}

func TestSession_CommunityBanned(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{
		PenaltyReason:  5,
		PenaltySeconds: 600,
		Ranking:        &gc.PlayerRanking{Wins: 10, RankID: 2},
	})
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.EntitlementsReadyEvent{PlayerID: 1, DisplayName: "x", CommunityBanned: true})
	}

	res, err := newTestSession(c, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Community banned", res.Penalty.Reason)
	assert.True(t, res.Penalty.Permanent)
	assert.True(t, res.Penalty.ExpiresAt.IsZero())
}

func TestSession_SharedSecretSkipsProvider(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})

	var respondedCode string
	providerCalled := false
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.GuardChallengeEvent{
			Domain: "", // deterministic authenticator challenge
			Respond: func(code string) {
				respondedCode = code
				c.emit(platform.EntitlementsReadyEvent{PlayerID: 1, DisplayName: "x"})
			},
		})
	}

	sess := newTestSession(c, func(cfg *Config) {
		cfg.SharedSecret = "JBSWY3DPEHPK3PXP"
		cfg.Guard = secondfactor.ProviderFunc(func(ctx context.Context, login string) (string, error) {
			providerCalled = true
			return "000000", nil
		})
	})

	_, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, providerCalled, "interactive provider must not be consulted when a shared secret is on file")
	assert.Len(t, respondedCode, 6)
}

func TestSession_InteractiveProvider(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})

	var respondedCode string
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.GuardChallengeEvent{
			Domain: "mail.example.com",
			Respond: func(code string) {
				respondedCode = code
				c.emit(platform.EntitlementsReadyEvent{PlayerID: 1, DisplayName: "x"})
			},
		})
	}

	sess := newTestSession(c, func(cfg *Config) {
		cfg.Guard = secondfactor.ProviderFunc(func(ctx context.Context, login string) (string, error) {
			assert.Equal(t, "alice", login)
			return "R34DY", nil
		})
	})

	_, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "R34DY", respondedCode)
}

func TestSession_GuardCodeMissing(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"no provider and no secret", nil},
		{"provider declines", func(cfg *Config) {
			cfg.Guard = secondfactor.ProviderFunc(func(ctx context.Context, login string) (string, error) {
				return "", nil
			})
		}},
		{"provider fails", func(cfg *Config) {
			cfg.Guard = secondfactor.ProviderFunc(func(ctx context.Context, login string) (string, error) {
				return "", errors.New("prompt closed")
			})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient()
			c.onLogOn = func(c *fakeClient) {
				c.emit(platform.GuardChallengeEvent{Domain: "mail.example.com", Respond: func(string) {}})
			}

			_, err := newTestSession(c, tt.mutate).Run(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, common.ErrGuardCodeMissing))
			assert.Equal(t, 1, c.logOffs, "logoff must run even on failure")
		})
	}
}

func TestSession_PlatformErrorMapping(t *testing.T) {
	tests := []struct {
		code int32
		want error
	}{
		{5, common.ErrInvalidCredentials},
		{6, common.ErrSessionConflict},
		{34, common.ErrSessionConflict},
		{84, common.ErrRateLimited},
		{65, common.ErrGuardCodeInvalid},
	}
	for _, tt := range tests {
		c := newFakeClient()
		c.onLogOn = func(c *fakeClient) { c.emit(platform.ErrorEvent{Code: tt.code}) }

		_, err := newTestSession(c, nil).Run(context.Background())
		assert.True(t, errors.Is(err, tt.want), "code %d", tt.code)
	}
}

func TestSession_UnknownPlatformError(t *testing.T) {
	c := newFakeClient()
	c.onLogOn = func(c *fakeClient) { c.emit(platform.ErrorEvent{Code: 999}) }

	_, err := newTestSession(c, nil).Run(context.Background())
	var unknown *common.UnknownPlatformError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, int32(999), unknown.Code)
}

func TestSession_Disconnected(t *testing.T) {
	c := newFakeClient()
	c.onLogOn = func(c *fakeClient) { c.emit(platform.DisconnectedEvent{Message: "connection reset"}) }

	_, err := newTestSession(c, nil).Run(context.Background())
	assert.True(t, errors.Is(err, common.ErrDisconnected))
}

func TestSession_EventChannelClosed(t *testing.T) {
	c := newFakeClient()
	c.onLogOn = func(c *fakeClient) { close(c.events) }

	_, err := newTestSession(c, nil).Run(context.Background())
	assert.True(t, errors.Is(err, common.ErrDisconnected))
}

func TestSession_StateTimeout(t *testing.T) {
	c := newFakeClient() // never emits anything

	sess := newTestSession(c, func(cfg *Config) {
		cfg.Timing.StateTimeout = 20 * time.Millisecond
	})

	_, err := sess.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrTimeout))
	assert.Equal(t, 1, c.logOffs)
}

func TestSession_MalformedWelcomeIsFatal(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, nil)
	c.onSend = func(c *fakeClient, msgType uint32, payload []byte) {
		if msgType == gc.MsgClientHello {
			c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgClientWelcome,
				Payload: []byte{0xff}})
		}
	}

	_, err := newTestSession(c, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrSchema))
}

func TestSession_IgnoresUnknownCoordinatorMessages(t *testing.T) {
	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})
	base := c.onLogOn
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: 4242, Payload: []byte{0x01}})
		base(c)
	}

	_, err := newTestSession(c, nil).Run(context.Background())
	assert.NoError(t, err)
}

func TestSession_SupervisorAdmission(t *testing.T) {
	sup := NewSupervisor()
	require.True(t, sup.Admit("alice"))

	c := newFakeClient()
	sess := newTestSession(c, func(cfg *Config) { cfg.Supervisor = sup })

	_, err := sess.Run(context.Background())
	assert.True(t, errors.Is(err, common.ErrCheckInProgress))
	assert.Equal(t, 1, c.logOffs, "refused admission must still disconnect the dialed client")
	assert.True(t, sup.IsActive("alice"), "the in-flight slot belongs to the other session")

	sup.Release("alice")

	c2 := newFakeClient()
	scriptHappyPath(c2, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})
	sess2 := newTestSession(c2, func(cfg *Config) { cfg.Supervisor = sup })

	_, err = sess2.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, sup.IsActive("alice"), "slot must be released on termination")
}

func TestSession_PlaytimeEnrichment(t *testing.T) {
	fetched := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<td>Competitive</td><td>1</td><td>1</td><td>1</td><td>1</td><td>2023-11-02 18:30:11 GMT</td>`))
		close(fetched)
	}))
	defer ts.Close()

	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})

	// Hold the final rank update until the enrichment landed, so the merge
	// is observable in the resolved result.
	release := make(chan struct{})
	base := c.onSend
	c.onSend = func(c *fakeClient, msgType uint32, payload []byte) {
		if msgType == gc.MsgRankUpdate {
			go func() {
				<-release
				c.emit(platform.GCMessageEvent{AppID: testAppID, MsgType: gc.MsgRankUpdate,
					Payload: rankUpdatePayload(1, 1, 1, 1)})
			}()
			return
		}
		base(c, msgType, payload)
	}
	baseLogOn := c.onLogOn
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.WebSessionEvent{PlayerID: 1, Cookies: []string{"sessionid=abc"}})
		baseLogOn(c)
	}

	go func() {
		<-fetched
		// Give the session loop a moment to consume the enrichment.
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	sess := newTestSession(c, func(cfg *Config) {
		cfg.Playtimes = NewPlaytimeFetcher(ts.URL, testAppID, ts.Client())
	})

	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 11, 2, 18, 30, 11, 0, time.UTC), res.Competitive.LastPlayed.UTC())
}

func TestSession_PlaytimeFailureIsSwallowed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newFakeClient()
	scriptHappyPath(c, &gc.MatchmakingHelloResponse{Ranking: &gc.PlayerRanking{Wins: 1, RankID: 1}})
	baseLogOn := c.onLogOn
	c.onLogOn = func(c *fakeClient) {
		c.emit(platform.WebSessionEvent{PlayerID: 1})
		baseLogOn(c)
	}

	sess := newTestSession(c, func(cfg *Config) {
		cfg.Playtimes = NewPlaytimeFetcher(ts.URL, testAppID, ts.Client())
	})

	res, err := sess.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Competitive.LastPlayed.IsZero())
}

func TestSession_LogOnFailure(t *testing.T) {
	c := newFakeClient()
	c.logOnErr = errors.New("gateway unreachable")

	_, err := newTestSession(c, nil).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, c.logOffs)
}
