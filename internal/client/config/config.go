package config

import (
	"time"

	"github.com/dmitrijs2005/lifedash/internal/client/export"
	"github.com/dmitrijs2005/lifedash/internal/client/profiles"
)

// Config holds runtime settings for the LifeDash client.
//
// Fields:
//   - StoreEndpoint: host:port of the store service.
//   - StoreAPIKey: access key sent with every store call.
//   - AdminEmail: the address that is always treated as an admin.
//   - SessionDBPath: SQLite file the signed-in session is cached in.
//   - RequestTimeout: bound on every store call; zero disables it.
//   - Memory: run against the in-process store, for demos and offline use.
//   - S3: destination of admin snapshot exports; an empty bucket disables export.
type Config struct {
	StoreEndpoint  string
	StoreAPIKey    string
	AdminEmail     string
	SessionDBPath  string
	RequestTimeout time.Duration
	Memory         bool
	S3             export.Config
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.StoreEndpoint = "127.0.0.1:50051"
	c.StoreAPIKey = "lifedash-anon-key"
	c.AdminEmail = profiles.DefaultAdminEmail
	c.SessionDBPath = "lifedash-session.db"
	c.RequestTimeout = 10 * time.Second
	c.S3.Region = "us-east-1"
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
