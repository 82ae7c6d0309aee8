package config

import (
	"flag"
	"os"
	"time"

	"standcheck/internal/flagx"
)

// knownFlags are the flags this loader owns. os.Args is filtered through
// flagx.FilterArgs so flags defined elsewhere do not break parsing.
var knownFlags = []string{
	"-a", "-t", "-f", "-app",
	"-time-endpoint", "-profile-url", "-dsn",
	"-stagger", "-timeout",
	"-s3-region", "-s3-access-key", "-s3-secret-key",
	"-s3-endpoint", "-s3-bucket", "-s3-prefix",
}

func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], knownFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.GatewayAddr, "a", cfg.GatewayAddr, "address and port of the connection gateway")
	fs.StringVar(&cfg.GatewayToken, "t", cfg.GatewayToken, "gateway access token")
	fs.StringVar(&cfg.VaultPath, "f", cfg.VaultPath, "path to the encrypted vault file")
	appID := fs.Uint("app", uint(cfg.AppID), "application id")
	fs.StringVar(&cfg.TimeEndpoint, "time-endpoint", cfg.TimeEndpoint, "platform time service URL")
	fs.StringVar(&cfg.ProfileBaseURL, "profile-url", cfg.ProfileBaseURL, "community web base URL")
	fs.StringVar(&cfg.HistoryDSN, "dsn", cfg.HistoryDSN, "PostgreSQL DSN for check history")
	stagger := fs.Int("stagger", int(cfg.ImportStagger.Seconds()), "pause between scheduled checks (in seconds)")
	timeout := fs.Int("timeout", int(cfg.StateTimeout.Seconds()), "session progress timeout (in seconds)")
	fs.StringVar(&cfg.S3Region, "s3-region", cfg.S3Region, "object storage region")
	fs.StringVar(&cfg.S3AccessKey, "s3-access-key", cfg.S3AccessKey, "object storage access key")
	fs.StringVar(&cfg.S3SecretKey, "s3-secret-key", cfg.S3SecretKey, "object storage secret key")
	fs.StringVar(&cfg.S3BaseEndpoint, "s3-endpoint", cfg.S3BaseEndpoint, "object storage base endpoint")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "object storage bucket for vault snapshots")
	fs.StringVar(&cfg.S3Prefix, "s3-prefix", cfg.S3Prefix, "object key prefix for vault snapshots")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.AppID = uint32(*appID)
	cfg.ImportStagger = time.Duration(*stagger) * time.Second
	cfg.StateTimeout = time.Duration(*timeout) * time.Second
}
