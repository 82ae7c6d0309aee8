package secondfactor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/sync/singleflight"
)

// CodeGenerator derives guard codes from an account's shared secret. Codes
// are TOTP values computed against the platform's clock, so the generator
// first learns the offset between the local clock and the platform clock.
//
// The offset is fetched once per process and reused by every session; a race
// to compute it is collapsed to a single in-flight request.
type CodeGenerator struct {
	endpoint string
	httpc    *http.Client

	group singleflight.Group

	mu         sync.RWMutex
	offset     time.Duration
	haveOffset bool

	// now is a test seam.
	now func() time.Time
}

// NewCodeGenerator builds a generator that queries endpoint for the platform
// time. An empty endpoint trusts the local clock. A nil client falls back to
// http.DefaultClient.
func NewCodeGenerator(endpoint string, httpc *http.Client) *CodeGenerator {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &CodeGenerator{endpoint: endpoint, httpc: httpc, now: time.Now}
}

// Code computes the current guard code for the given shared secret.
func (g *CodeGenerator) Code(ctx context.Context, sharedSecret string) (string, error) {
	offset, err := g.timeOffset(ctx)
	if err != nil {
		return "", fmt.Errorf("getting platform time offset: %w", err)
	}
	code, err := totp.GenerateCode(sharedSecret, g.now().Add(offset))
	if err != nil {
		return "", fmt.Errorf("generating guard code: %w", err)
	}
	return code, nil
}

func (g *CodeGenerator) timeOffset(ctx context.Context) (time.Duration, error) {
	g.mu.RLock()
	if g.haveOffset {
		defer g.mu.RUnlock()
		return g.offset, nil
	}
	g.mu.RUnlock()

	if g.endpoint == "" {
		return 0, nil
	}

	v, err, _ := g.group.Do("offset", func() (any, error) {
		// Re-check under the write path: another caller may have stored the
		// offset between our read and the singleflight admission.
		g.mu.RLock()
		have, offset := g.haveOffset, g.offset
		g.mu.RUnlock()
		if have {
			return offset, nil
		}

		offset, err := g.fetchOffset(ctx)
		if err != nil {
			return time.Duration(0), err
		}

		g.mu.Lock()
		g.offset = offset
		g.haveOffset = true
		g.mu.Unlock()
		return offset, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

func (g *CodeGenerator) fetchOffset(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, nil)
	if err != nil {
		return 0, err
	}

	resp, err := g.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("time endpoint returned %s", resp.Status)
	}

	var body struct {
		ServerTime int64 `json:"server_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("parsing time endpoint response: %w", err)
	}
	if body.ServerTime == 0 {
		return 0, fmt.Errorf("time endpoint returned no server_time")
	}

	return time.Unix(body.ServerTime, 0).Sub(g.now()), nil
}
