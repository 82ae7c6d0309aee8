package checker

import (
	"context"
	"fmt"
	"time"

	"standcheck/internal/common"
	"standcheck/internal/gc"
	"standcheck/internal/logging"
	"standcheck/internal/platform"
	"standcheck/internal/secondfactor"
)

// State of a verification session. Transitions are driven exclusively by
// platform events and pacing timers; StateResolved and StateFailed are
// terminal.
type State int

const (
	StateLoggingOn State = iota
	StateAwaitingSecondFactor
	StateLoggedOn
	StateAwaitingAppStart
	StateAwaitingWelcome
	StateAwaitingMatchmakingHello
	StateAwaitingSecondaryRanks
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoggingOn:
		return "logging-on"
	case StateAwaitingSecondFactor:
		return "awaiting-second-factor"
	case StateLoggedOn:
		return "logged-on"
	case StateAwaitingAppStart:
		return "awaiting-app-start"
	case StateAwaitingWelcome:
		return "awaiting-welcome"
	case StateAwaitingMatchmakingHello:
		return "awaiting-matchmaking-hello"
	case StateAwaitingSecondaryRanks:
		return "awaiting-secondary-ranks"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// maxHelloAttempts bounds the matchmaking-hello retry loop.
const maxHelloAttempts = 5

// Timing holds the protocol pacing delays. These are deliberate pacing
// mandated by the coordinator, not timeouts; tests shrink them.
type Timing struct {
	// WebSettle is the pause before fetching the profile page after a web
	// session is established.
	WebSettle time.Duration

	// AppSettle is the pause between the app-launched confirmation and the
	// coordinator hello; sending earlier tends to get dropped.
	AppSettle time.Duration

	// WelcomeSettle is the pause between the welcome and the first
	// matchmaking hello.
	WelcomeSettle time.Duration

	// RetryBackoff is the pause between matchmaking-hello retries.
	RetryBackoff time.Duration

	// StateTimeout bounds the wait for the next event in any one state.
	// Zero keeps the reference behavior of waiting forever.
	StateTimeout time.Duration
}

// DefaultTiming returns the pacing used against the production coordinator.
func DefaultTiming() Timing {
	return Timing{
		WebSettle:     time.Second,
		AppSettle:     5 * time.Second,
		WelcomeSettle: time.Second,
		RetryBackoff:  2 * time.Second,
	}
}

// Config parameterizes one verification session.
type Config struct {
	Credentials platform.Credentials

	// SharedSecret enables deterministic guard-code derivation. Empty means
	// the interactive Guard provider is the only second-factor source.
	SharedSecret string

	// AppID of the target application whose coordinator is queried.
	AppID uint32

	// Codes derives deterministic guard codes. Optional; a zero-offset
	// generator is used when nil.
	Codes *secondfactor.CodeGenerator

	// Guard is the interactive second-factor provider. Optional.
	Guard secondfactor.Provider

	// Playtimes enables the best-effort last-played enrichment. Optional.
	Playtimes *PlaytimeFetcher

	// Supervisor enforcing single-session-per-login admission. Optional
	// (sessions constructed directly in tests run unsupervised).
	Supervisor *Supervisor

	Timing Timing

	Logger logging.Logger
}

// pending fields that must arrive before a session resolves.
type pendingField string

const (
	pendingIdentity    pendingField = "identity"
	pendingCompetitive pendingField = "competitive"
	pendingWingman     pendingField = "wingman"
	pendingDangerZone  pendingField = "dangerzone"
)

// Session is one in-flight account verification. Create with NewSession,
// drive with Run; a Session is single-use.
type Session struct {
	cfg    Config
	client platform.Client
	log    logging.Logger

	state           State
	attempts        int
	rankRequestSent bool
	vacBanned       bool
	communityBanned bool

	res     Result
	pending map[pendingField]struct{}

	playtimesCh chan Playtimes

	// now is a test seam for penalty expiry arithmetic.
	now func() time.Time
}

// NewSession builds a session around a connected (but not yet logged on)
// platform client.
func NewSession(client platform.Client, cfg Config) *Session {
	if cfg.Codes == nil {
		cfg.Codes = secondfactor.NewCodeGenerator("", nil)
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Session{
		cfg:    cfg,
		client: client,
		log:    log.With("login", cfg.Credentials.Login),
		state:  StateLoggingOn,
		pending: map[pendingField]struct{}{
			pendingIdentity:    {},
			pendingCompetitive: {},
			pendingWingman:     {},
			pendingDangerZone:  {},
		},
		playtimesCh: make(chan Playtimes, 1),
		now:         time.Now,
	}
}

// Run drives the session to a terminal state and returns the fully resolved
// result or the terminal error. Whatever the outcome, the platform client is
// asked to log off (best effort) and the supervisor slot is released.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	login := s.cfg.Credentials.Login

	// The client arrives already dialed, so it is disconnected on every
	// resolution path, including a refused admission.
	defer func() {
		if err := s.client.LogOff(); err != nil {
			s.log.Warn(ctx, "logoff failed", "error", err)
		}
	}()

	if s.cfg.Supervisor != nil {
		if !s.cfg.Supervisor.Admit(login) {
			return nil, common.ErrCheckInProgress
		}
		defer s.cfg.Supervisor.Release(login)
	}

	res, err := s.run(ctx)
	if err != nil {
		s.state = StateFailed
		s.log.Warn(ctx, "verification failed", "state", s.state.String(), "error", err)
		return nil, err
	}
	s.state = StateResolved
	s.log.Info(ctx, "verification resolved",
		"prime", res.Prime, "penalty", res.Penalty.Reason, "wins", res.Competitive.Wins)
	return res, nil
}

func (s *Session) run(ctx context.Context) (*Result, error) {
	if err := s.client.LogOn(ctx, s.cfg.Credentials); err != nil {
		return nil, fmt.Errorf("logon: %w", err)
	}

	for {
		var timeout <-chan time.Time
		var timer *time.Timer
		if s.cfg.Timing.StateTimeout > 0 {
			timer = time.NewTimer(s.cfg.Timing.StateTimeout)
			timeout = timer.C
		}

		select {
		case ev, ok := <-s.client.Events():
			if timer != nil {
				timer.Stop()
			}
			if !ok {
				return nil, common.ErrDisconnected
			}
			if err := s.handle(ctx, ev); err != nil {
				return nil, err
			}
			if len(s.pending) == 0 {
				res := s.res
				return &res, nil
			}

		case pt := <-s.playtimesCh:
			if timer != nil {
				timer.Stop()
			}
			s.res.Competitive.LastPlayed = pt.Competitive
			s.res.Wingman.LastPlayed = pt.Wingman
			s.res.DangerZone.LastPlayed = pt.DangerZone

		case <-timeout:
			return nil, fmt.Errorf("no progress in state %s: %w", s.state, common.ErrTimeout)

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Session) handle(ctx context.Context, ev platform.Event) error {
	switch ev := ev.(type) {
	case platform.DisconnectedEvent:
		return fmt.Errorf("%s: %w", ev.Message, common.ErrDisconnected)

	case platform.ErrorEvent:
		return platform.ErrorFromResult(ev.Code)

	case platform.GuardChallengeEvent:
		return s.handleGuardChallenge(ctx, ev)

	case platform.EntitlementsReadyEvent:
		return s.handleEntitlementsReady(ctx, ev)

	case platform.WebSessionEvent:
		s.startPlaytimeFetch(ctx, ev)
		return nil

	case platform.AppLaunchedEvent:
		return s.handleAppLaunched(ctx, ev)

	case platform.GCMessageEvent:
		if ev.AppID != s.cfg.AppID {
			return nil
		}
		return s.handleGCMessage(ctx, ev)

	default:
		return nil
	}
}

func (s *Session) handleGuardChallenge(ctx context.Context, ev platform.GuardChallengeEvent) error {
	if s.state != StateLoggingOn && s.state != StateAwaitingSecondFactor {
		return nil
	}
	s.state = StateAwaitingSecondFactor

	// An empty domain marks the deterministic authenticator challenge; with
	// a shared secret on file the code is derived locally and the
	// interactive provider is never consulted.
	if ev.Domain == "" && s.cfg.SharedSecret != "" {
		code, err := s.cfg.Codes.Code(ctx, s.cfg.SharedSecret)
		if err != nil {
			return fmt.Errorf("%v: %w", err, common.ErrGuardCodeMissing)
		}
		ev.Respond(code)
		return nil
	}

	if s.cfg.Guard == nil {
		return common.ErrGuardCodeMissing
	}
	code, err := s.cfg.Guard.RequestCode(ctx, s.cfg.Credentials.Login)
	if err != nil {
		return fmt.Errorf("%v: %w", err, common.ErrGuardCodeMissing)
	}
	if code == "" {
		return common.ErrGuardCodeMissing
	}
	ev.Respond(code)
	return nil
}

func (s *Session) handleEntitlementsReady(ctx context.Context, ev platform.EntitlementsReadyEvent) error {
	if s.state != StateLoggingOn && s.state != StateAwaitingSecondFactor {
		return nil
	}
	s.state = StateLoggedOn
	s.log.Info(ctx, "logged on", "player_id", ev.PlayerID)

	s.communityBanned = ev.CommunityBanned
	s.res.PlayerID = ev.PlayerID
	s.res.DisplayName = ev.DisplayName
	delete(s.pending, pendingIdentity)

	// Grab the free license in case the account does not own the app yet,
	// then signal it as running so the coordinator becomes reachable.
	if err := s.client.RequestFreeLicense(ctx, s.cfg.AppID); err != nil {
		return fmt.Errorf("requesting license: %w", err)
	}
	s.client.SetGamesPlayed(s.cfg.AppID)
	s.state = StateAwaitingAppStart
	return nil
}

func (s *Session) startPlaytimeFetch(ctx context.Context, ev platform.WebSessionEvent) {
	if s.cfg.Playtimes == nil {
		return
	}
	// Independent side channel: runs concurrently with the handshake and
	// its failure is swallowed.
	settle := s.cfg.Timing.WebSettle
	go func() {
		if err := sleepCtx(ctx, settle); err != nil {
			return
		}
		pt, err := s.cfg.Playtimes.Fetch(ctx, ev.PlayerID, ev.Cookies)
		if err != nil {
			s.log.Warn(ctx, "playtime fetch failed", "error", err)
			return
		}
		s.playtimesCh <- pt
	}()
}

func (s *Session) handleAppLaunched(ctx context.Context, ev platform.AppLaunchedEvent) error {
	if s.state != StateAwaitingAppStart || ev.AppID != s.cfg.AppID {
		return nil
	}
	s.log.Info(ctx, "app launched", "app_id", ev.AppID)

	if err := sleepCtx(ctx, s.cfg.Timing.AppSettle); err != nil {
		return err
	}
	if err := s.client.SendToGC(s.cfg.AppID, gc.MsgClientHello, gc.Encode(gc.ClientHello{})); err != nil {
		return fmt.Errorf("sending coordinator hello: %w", err)
	}
	s.state = StateAwaitingWelcome
	return nil
}

func (s *Session) handleGCMessage(ctx context.Context, ev platform.GCMessageEvent) error {
	switch ev.MsgType {
	case gc.MsgClientWelcome:
		if s.state != StateAwaitingWelcome {
			return nil
		}
		return s.handleWelcome(ctx, ev.Payload)

	case gc.MsgMatchmakingHelloResponse:
		if s.state != StateAwaitingMatchmakingHello {
			return nil
		}
		return s.handleMatchmakingHello(ctx, ev.Payload)

	case gc.MsgRankUpdate:
		if s.state != StateAwaitingSecondaryRanks {
			return nil
		}
		return s.handleRankUpdate(ev.Payload)

	default:
		// Out-of-set coordinator traffic is expected noise.
		return nil
	}
}

func (s *Session) handleWelcome(ctx context.Context, payload []byte) error {
	msg, err := gc.Decode(gc.MsgClientWelcome, payload)
	if err != nil {
		return err
	}
	welcome := msg.(*gc.ClientWelcome)

	for _, cache := range welcome.Caches {
		for _, obj := range cache.Objects {
			if obj.TypeID != gc.CacheTypeGameAccount || len(obj.ObjectData) == 0 {
				continue
			}
			acct, err := gc.DecodeGameAccountClient(obj.ObjectData[0])
			if err != nil {
				return err
			}
			if acct.Prime() {
				s.res.Prime = true
			}
		}
	}

	if err := sleepCtx(ctx, s.cfg.Timing.WelcomeSettle); err != nil {
		return err
	}
	if err := s.sendMatchmakingHello(); err != nil {
		return err
	}
	s.state = StateAwaitingMatchmakingHello
	return nil
}

func (s *Session) handleMatchmakingHello(ctx context.Context, payload []byte) error {
	msg, err := gc.Decode(gc.MsgMatchmakingHelloResponse, payload)
	if err != nil {
		return err
	}
	hello := msg.(*gc.MatchmakingHelloResponse)

	s.attempts++
	if hello.Ranking == nil && !hello.VACBanned && s.attempts < maxHelloAttempts {
		// The coordinator often answers before ranking data is loaded;
		// nudge it again after a pause.
		s.log.Info(ctx, "no ranking data yet, retrying", "attempt", s.attempts)
		if err := sleepCtx(ctx, s.cfg.Timing.RetryBackoff); err != nil {
			return err
		}
		return s.sendMatchmakingHello()
	}

	s.vacBanned = hello.VACBanned
	s.res.Penalty = classifyPenalty(s.communityBanned, hello, s.now())
	s.res.Level = int32(hello.PlayerLevel)

	switch {
	case hello.VACBanned:
		// VAC bans are not in-game bans: the rank survives but is hidden,
		// which the sentinel replicates.
		s.res.Competitive.Wins = BanSentinel
		s.res.Competitive.Rank = BanSentinel
	case hello.Ranking != nil:
		s.res.Competitive.Wins = int32(hello.Ranking.Wins)
		s.res.Competitive.Rank = int32(hello.Ranking.RankID)
	default:
		// Retry budget exhausted without data: unranked, zero wins.
		s.res.Competitive.Wins = 0
		s.res.Competitive.Rank = 0
	}
	delete(s.pending, pendingCompetitive)

	// The secondary-mode rankings are hidden by default and must be
	// requested explicitly. Sent once per session.
	if !s.rankRequestSent {
		s.rankRequestSent = true
		req := &gc.RankUpdate{Rankings: []gc.PlayerRanking{
			{RankTypeID: gc.RankTypeWingman},
			{RankTypeID: gc.RankTypeDangerZone},
		}}
		if err := s.client.SendToGC(s.cfg.AppID, gc.MsgRankUpdate, gc.Encode(req)); err != nil {
			return fmt.Errorf("requesting secondary ranks: %w", err)
		}
	}
	s.state = StateAwaitingSecondaryRanks
	return nil
}

func (s *Session) handleRankUpdate(payload []byte) error {
	msg, err := gc.Decode(gc.MsgRankUpdate, payload)
	if err != nil {
		return err
	}
	upd := msg.(*gc.RankUpdate)

	for _, r := range upd.Rankings {
		stats := ModeStats{Wins: int32(r.Wins), Rank: int32(r.RankID)}
		if s.vacBanned {
			stats.Wins = BanSentinel
			stats.Rank = BanSentinel
		}
		switch r.RankTypeID {
		case gc.RankTypeWingman:
			stats.LastPlayed = s.res.Wingman.LastPlayed
			s.res.Wingman = stats
			delete(s.pending, pendingWingman)
		case gc.RankTypeDangerZone:
			stats.LastPlayed = s.res.DangerZone.LastPlayed
			s.res.DangerZone = stats
			delete(s.pending, pendingDangerZone)
		}
	}
	return nil
}

func (s *Session) sendMatchmakingHello() error {
	err := s.client.SendToGC(s.cfg.AppID, gc.MsgMatchmakingHello, gc.Encode(gc.MatchmakingHello{}))
	if err != nil {
		return fmt.Errorf("sending matchmaking hello: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
