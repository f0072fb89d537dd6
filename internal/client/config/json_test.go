package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/lifedash/internal/client/export"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("loads from json", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{
			"store_endpoint":  "www.example:9000",
			"store_api_key":   "key",
			"admin_email":     "boss@example.com",
			"session_db_path": "/tmp/s.db",
			"request_timeout": "5s",
			"memory":          true,
			"s3": map[string]any{
				"bucket":     "snaps",
				"region":     "eu-central-1",
				"endpoint":   "http://minio:9000",
				"access_key": "ak",
				"secret_key": "sk",
			},
		})
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, Config{
			StoreEndpoint:  "www.example:9000",
			StoreAPIKey:    "key",
			AdminEmail:     "boss@example.com",
			SessionDBPath:  "/tmp/s.db",
			RequestTimeout: 5 * time.Second,
			Memory:         true,
			S3: export.Config{
				Bucket:    "snaps",
				Region:    "eu-central-1",
				Endpoint:  "http://minio:9000",
				AccessKey: "ak",
				SecretKey: "sk",
			},
		}, *cfg)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"s3": map[string]any{"bucket": "snaps"}})
		os.Args = []string{"testbin", "-c", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "snaps", cfg.S3.Bucket)
		assert.Equal(t, "us-east-1", cfg.S3.Region)
		assert.Equal(t, "127.0.0.1:50051", cfg.StoreEndpoint)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	})

	t.Run("no config leaves values alone", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv("LIFEDASH_CONFIG", "")

		cfg := &Config{StoreEndpoint: "keep"}
		parseJson(cfg)
		assert.Equal(t, "keep", cfg.StoreEndpoint)
	})

	t.Run("invalid json panics", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte("{\"memory\": \"yes\""), 0o600))
		os.Args = []string{"testbin", "-c", bad}
		assert.Panics(t, func() { parseJson(&Config{}) })
	})
}
