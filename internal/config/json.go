package config

import (
	"encoding/json"
	"os"
	"time"

	"standcheck/internal/flagx"
)

// JsonConfig is the DTO for the optional JSON config file. Durations are
// strings in time.ParseDuration syntax ("3s", "2m").
type JsonConfig struct {
	GatewayAddr  string `json:"gateway_addr"`
	GatewayToken string `json:"gateway_token"`

	VaultPath string `json:"vault_path"`
	AppID     uint32 `json:"app_id"`

	TimeEndpoint   string `json:"time_endpoint"`
	ProfileBaseURL string `json:"profile_base_url"`
	HistoryDSN     string `json:"history_dsn"`

	ImportStagger string `json:"import_stagger"`
	StateTimeout  string `json:"state_timeout"`

	S3Region       string `json:"s3_region"`
	S3AccessKey    string `json:"s3_access_key"`
	S3SecretKey    string `json:"s3_secret_key"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
	S3Bucket       string `json:"s3_bucket"`
	S3Prefix       string `json:"s3_prefix"`
}

// parseJson overlays cfg with values from the file named by -c/-config.
// Only fields present in the file override the current values. Read and
// syntax errors panic; startup with a broken config file must not proceed.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	applyJson(cfg, &jc)
}

func applyJson(cfg *Config, jc *JsonConfig) {
	setString(&cfg.GatewayAddr, jc.GatewayAddr)
	setString(&cfg.GatewayToken, jc.GatewayToken)
	setString(&cfg.VaultPath, jc.VaultPath)
	if jc.AppID != 0 {
		cfg.AppID = jc.AppID
	}
	setString(&cfg.TimeEndpoint, jc.TimeEndpoint)
	setString(&cfg.ProfileBaseURL, jc.ProfileBaseURL)
	setString(&cfg.HistoryDSN, jc.HistoryDSN)
	setDuration(&cfg.ImportStagger, jc.ImportStagger)
	setDuration(&cfg.StateTimeout, jc.StateTimeout)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Prefix, jc.S3Prefix)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
