// Package platform defines the contract for the asynchronous gaming-network
// client that verification sessions drive. The actual transport (logon
// handshake, session cookies, message framing) lives behind this interface
// and is not implemented here; see the gateway subpackage for the adapter
// used in deployments.
package platform

import "context"

// Credentials identify one account on the gaming network.
type Credentials struct {
	Login    string
	Password string
}

// Client is a connected, account-scoped network client. All notifications
// arrive on the Events channel; the channel is closed when the underlying
// connection is gone. A Client is owned by exactly one verification session.
type Client interface {
	// LogOn submits credentials. The outcome arrives asynchronously as
	// events (a guard challenge, an entitlements-ready notification, or an
	// error event).
	LogOn(ctx context.Context, creds Credentials) error

	// Events returns the notification stream. The stream is closed once the
	// connection is terminated.
	Events() <-chan Event

	// RequestFreeLicense asks the platform to grant the free license for the
	// given application if the account does not hold one yet.
	RequestFreeLicense(ctx context.Context, appID uint32) error

	// SetGamesPlayed signals the given application as running, which makes
	// the coordinator reachable through SendToGC.
	SetGamesPlayed(appID uint32)

	// SendToGC forwards a raw message to the application's coordinator.
	SendToGC(appID uint32, msgType uint32, payload []byte) error

	// LogOff tears down the connection. Safe to call more than once.
	LogOff() error
}

// Dialer produces a fresh Client for one verification session.
type Dialer func(ctx context.Context) (Client, error)
