// Package config holds the runtime settings of the checker CLI. Values are
// layered: built-in defaults, then an optional JSON file, then command-line
// flags, with later sources taking precedence.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings.
//
// Optional integrations are disabled by leaving their setting empty:
// TimeEndpoint (platform clock sync), ProfileBaseURL (last-played
// enrichment), HistoryDSN (audit trail) and S3Bucket (vault snapshots).
type Config struct {
	// GatewayAddr is the host:port of the connection gateway.
	GatewayAddr string
	// GatewayToken authenticates this operator against the gateway.
	GatewayToken string

	// VaultPath locates the encrypted account vault file.
	VaultPath string

	// AppID of the game whose coordinator is queried.
	AppID uint32

	// TimeEndpoint is the platform time service used to align guard codes.
	TimeEndpoint string

	// ProfileBaseURL is the community web root for profile scraping.
	ProfileBaseURL string

	// HistoryDSN is the PostgreSQL DSN of the check audit trail.
	HistoryDSN string

	// ImportStagger is the pause between checks scheduled by an import.
	ImportStagger time.Duration

	// StateTimeout aborts a session that makes no progress for this long.
	// Zero waits forever.
	StateTimeout time.Duration

	S3Region       string
	S3AccessKey    string
	S3SecretKey    string
	S3BaseEndpoint string
	S3Bucket       string
	S3Prefix       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.GatewayAddr = "127.0.0.1:50051"
	c.VaultPath = defaultVaultPath()
	c.AppID = 730
	c.ImportStagger = 3 * time.Second
	c.StateTimeout = 2 * time.Minute
	c.S3Prefix = "vaults"
}

func defaultVaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "vault.dat"
	}
	return filepath.Join(home, ".standcheck", "vault.dat")
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
