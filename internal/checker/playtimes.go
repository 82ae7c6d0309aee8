package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Per-mode last-played timestamps scraped from the community profile page.
// This is best-effort enrichment: a failed fetch never affects the outcome
// of a verification.
type Playtimes struct {
	Competitive time.Time
	Wingman     time.Time
	DangerZone  time.Time
}

// The personal game data page renders one table row per mode; the last cell
// carries the last-played timestamp.
var (
	competitiveRowRe = regexp.MustCompile(`<td>Competitive</td><td>\d+</td><td>\d+</td><td>\d+</td><td>\d+</td><td>(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} GMT)</td>`)
	wingmanRowRe     = regexp.MustCompile(`<td>Wingman</td><td>\d+</td><td>\d+</td><td>\d+</td><td>\d+</td><td>(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} GMT)</td>`)
	dangerZoneRowRe  = regexp.MustCompile(`<td>Danger Zone</td><td>\d+</td><td>\d+</td><td>(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} GMT)</td>`)
)

const playtimeLayout = "2006-01-02 15:04:05 MST"

// PlaytimeFetcher scrapes last-played timestamps from the community web
// site using an established web session's cookies.
type PlaytimeFetcher struct {
	baseURL string
	appID   uint32
	httpc   *http.Client
}

// NewPlaytimeFetcher builds a fetcher against the community site at
// baseURL. A nil client falls back to http.DefaultClient.
func NewPlaytimeFetcher(baseURL string, appID uint32, httpc *http.Client) *PlaytimeFetcher {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &PlaytimeFetcher{baseURL: strings.TrimRight(baseURL, "/"), appID: appID, httpc: httpc}
}

// Fetch downloads the matchmaking tab of the account's personal game data
// page and extracts whatever per-mode timestamps are present. Modes missing
// from the page stay zero.
func (f *PlaytimeFetcher) Fetch(ctx context.Context, playerID uint64, cookies []string) (Playtimes, error) {
	url := fmt.Sprintf("%s/profiles/%d/gcpd/%d?tab=matchmaking", f.baseURL, playerID, f.appID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Playtimes{}, err
	}
	req.Header.Set("Cookie", strings.Join(cookies, "; ")+";")

	resp, err := f.httpc.Do(req)
	if err != nil {
		return Playtimes{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Playtimes{}, fmt.Errorf("profile page returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Playtimes{}, err
	}

	var pt Playtimes
	pt.Competitive = matchPlaytime(competitiveRowRe, body)
	pt.Wingman = matchPlaytime(wingmanRowRe, body)
	pt.DangerZone = matchPlaytime(dangerZoneRowRe, body)
	return pt, nil
}

func matchPlaytime(re *regexp.Regexp, body []byte) time.Time {
	m := re.FindSubmatch(body)
	if m == nil {
		return time.Time{}
	}
	t, err := time.Parse(playtimeLayout, string(m[1]))
	if err != nil {
		return time.Time{}
	}
	return t
}
