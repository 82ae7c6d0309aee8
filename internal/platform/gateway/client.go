// Package gateway implements platform.Client over a gRPC bidirectional
// stream to a connection gateway. The gateway owns the real network session
// with the gaming platform; this side only exchanges protowire frames.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"standcheck/internal/logging"
	"standcheck/internal/platform"
)

// AccessTokenHeaderName is the metadata key carrying the operator's gateway
// token.
const AccessTokenHeaderName = "access_token"

const sessionMethod = "/standcheck.gateway.Gateway/Session"

var sessionStreamDesc = &grpc.StreamDesc{
	StreamName:    "Session",
	ClientStreams: true,
	ServerStreams: true,
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// Client is one gateway session. Create with Dial; a Client is single-use,
// like the platform session it fronts.
type Client struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	events chan platform.Event
	log    logging.Logger

	sendMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// Dial opens the session stream. The context governs the whole session
// lifetime: canceling it tears the stream down.
func Dial(ctx context.Context, addr, accessToken string, log logging.Logger) (*Client, error) {
	if log == nil {
		log = logging.Discard()
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connecting to gateway: %w", err)
	}

	stream, err := conn.NewStream(withAccessToken(ctx, accessToken), sessionStreamDesc, sessionMethod,
		grpc.ForceCodec(rawCodec{}))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening gateway stream: %w", err)
	}

	c := &Client{
		conn:   conn,
		stream: stream,
		events: make(chan platform.Event, 64),
		log:    log.With("component", "gateway"),
		done:   make(chan struct{}),
	}
	go c.recvLoop()
	return c, nil
}

// NewDialer adapts Dial to the platform.Dialer contract with the address and
// token fixed.
func NewDialer(addr, accessToken string, log logging.Logger) platform.Dialer {
	return func(ctx context.Context) (platform.Client, error) {
		return Dial(ctx, addr, accessToken, log)
	}
}

func (c *Client) send(cmd *command) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	f := rawFrame(appendCommand(cmd))
	return c.stream.SendMsg(&f)
}

func (c *Client) LogOn(ctx context.Context, creds platform.Credentials) error {
	err := c.send(&command{Kind: cmdLogOn, Login: creds.Login, Password: creds.Password})
	if err != nil {
		return fmt.Errorf("sending logon: %w", err)
	}
	return nil
}

func (c *Client) Events() <-chan platform.Event { return c.events }

func (c *Client) RequestFreeLicense(ctx context.Context, appID uint32) error {
	if err := c.send(&command{Kind: cmdFreeLicense, AppID: appID}); err != nil {
		return fmt.Errorf("requesting license: %w", err)
	}
	return nil
}

func (c *Client) SetGamesPlayed(appID uint32) {
	if err := c.send(&command{Kind: cmdGamesPlayed, AppID: appID}); err != nil {
		c.log.Warn(context.Background(), "games-played send failed", "error", err)
	}
}

func (c *Client) SendToGC(appID, msgType uint32, payload []byte) error {
	err := c.send(&command{Kind: cmdGCMessage, AppID: appID, MsgType: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("sending coordinator message: %w", err)
	}
	return nil
}

// LogOff announces the logoff to the gateway and closes the connection.
func (c *Client) LogOff() error {
	c.closeOnce.Do(func() {
		if err := c.send(&command{Kind: cmdLogOff}); err != nil {
			c.closeErr = err
		}
		if err := c.stream.CloseSend(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
		close(c.done)
		if err := c.conn.Close(); err != nil && c.closeErr == nil {
			c.closeErr = err
		}
	})
	return c.closeErr
}

func (c *Client) recvLoop() {
	defer close(c.events)
	for {
		var f rawFrame
		if err := c.stream.RecvMsg(&f); err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn(context.Background(), "gateway stream ended", "error", err)
			}
			return
		}

		e, err := parseEvent(f)
		if err != nil {
			c.log.Warn(context.Background(), "dropping malformed gateway frame", "error", err)
			continue
		}

		ev := c.translate(e)
		if ev == nil {
			continue
		}
		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Client) translate(e *event) platform.Event {
	switch e.Kind {
	case evtDisconnected:
		return platform.DisconnectedEvent{Code: e.Code, Message: e.Message}
	case evtError:
		return platform.ErrorEvent{Code: e.Code}
	case evtGuardChallenge:
		id := e.ChallengeID
		return platform.GuardChallengeEvent{
			Domain: e.Domain,
			Respond: func(code string) {
				if err := c.send(&command{Kind: cmdGuardCode, Code: code, ChallengeID: id}); err != nil {
					c.log.Warn(context.Background(), "guard code send failed", "error", err)
				}
			},
		}
	case evtWebSession:
		return platform.WebSessionEvent{PlayerID: e.PlayerID, Cookies: e.Cookies}
	case evtEntitlements:
		return platform.EntitlementsReadyEvent{
			PlayerID:        e.PlayerID,
			DisplayName:     e.DisplayName,
			CommunityBanned: e.CommunityBanned,
		}
	case evtAppLaunched:
		return platform.AppLaunchedEvent{AppID: e.AppID}
	case evtGCMessage:
		return platform.GCMessageEvent{AppID: e.AppID, MsgType: e.MsgType, Payload: e.Payload}
	default:
		c.log.Warn(context.Background(), "unknown gateway event kind", "kind", e.Kind)
		return nil
	}
}
