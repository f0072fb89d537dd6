package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/lifedash/internal/flagx"
	"github.com/dmitrijs2005/lifedash/internal/timex"
)

type JsonS3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// JsonConfig is the on-disk shape of the client configuration.
type JsonConfig struct {
	StoreEndpoint  string         `json:"store_endpoint"`
	StoreAPIKey    string         `json:"store_api_key"`
	AdminEmail     string         `json:"admin_email"`
	SessionDBPath  string         `json:"session_db_path"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	Memory         bool           `json:"memory"`
	S3             JsonS3Config   `json:"s3"`
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

	setString(&config.StoreEndpoint, c.StoreEndpoint)
	setString(&config.StoreAPIKey, c.StoreAPIKey)
	setString(&config.AdminEmail, c.AdminEmail)
	setString(&config.SessionDBPath, c.SessionDBPath)
	if c.RequestTimeout.Duration != 0 {
		config.RequestTimeout = c.RequestTimeout.Duration
	}
	if c.Memory {
		config.Memory = true
	}

	setString(&config.S3.Bucket, c.S3.Bucket)
	setString(&config.S3.Region, c.S3.Region)
	setString(&config.S3.Endpoint, c.S3.Endpoint)
	setString(&config.S3.AccessKey, c.S3.AccessKey)
	setString(&config.S3.SecretKey, c.S3.SecretKey)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
