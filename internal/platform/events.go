package platform

// Event is a notification from the network client. The concrete types below
// form a closed set; sessions ignore events they do not expect in their
// current state.
type Event interface {
	isEvent()
}

// DisconnectedEvent reports that the connection dropped. Delivered at most
// once, usually right before the event channel closes.
type DisconnectedEvent struct {
	Code    int32
	Message string
}

// ErrorEvent carries a platform-reported logon or session error code.
type ErrorEvent struct {
	Code int32
}

// GuardChallengeEvent asks for a second-factor code. Domain is the email
// domain the code was sent to; it is empty for the deterministic
// authenticator challenge. Respond must be called exactly once with the code.
type GuardChallengeEvent struct {
	Domain  string
	Respond func(code string)
}

// WebSessionEvent reports that a web session was established for the logged
// on account. Cookies authenticate requests against the community web site.
type WebSessionEvent struct {
	PlayerID uint64
	Cookies  []string
}

// EntitlementsReadyEvent reports a completed logon: account identity and
// standing flags are now known and licenses can be requested.
type EntitlementsReadyEvent struct {
	PlayerID        uint64
	DisplayName     string
	CommunityBanned bool
}

// AppLaunchedEvent confirms that the application signalled via
// SetGamesPlayed is registered as running.
type AppLaunchedEvent struct {
	AppID uint32
}

// GCMessageEvent carries a raw coordinator message.
type GCMessageEvent struct {
	AppID   uint32
	MsgType uint32
	Payload []byte
}

func (DisconnectedEvent) isEvent()      {}
func (ErrorEvent) isEvent()             {}
func (GuardChallengeEvent) isEvent()    {}
func (WebSessionEvent) isEvent()        {}
func (EntitlementsReadyEvent) isEvent() {}
func (AppLaunchedEvent) isEvent()       {}
func (GCMessageEvent) isEvent()         {}
