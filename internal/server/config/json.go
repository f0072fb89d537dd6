package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lifedash/internal/flagx"
	"github.com/dmitrijs2005/lifedash/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// accept "15m" style strings or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrGRPC             string         `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string         `json:"database_dsn"`
	SecretKey                    string         `json:"secret_key"`
	APIKey                       string         `json:"api_key"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	MetricsAddr                  string         `json:"metrics_addr"`
	AdminEmail                   string         `json:"admin_email"`
}

// parseJson overlays the JSON file named by -c/-config (or LIFEDASH_CONFIG)
// onto config. Fields missing from the file keep their current values. An
// unreadable or invalid file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigPath()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.APIKey, c.APIKey)
	setString(&config.MetricsAddr, c.MetricsAddr)
	setString(&config.AdminEmail, c.AdminEmail)
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
