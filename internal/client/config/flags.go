package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/flagx"
)

// parseFlags populates Config fields from command-line flags. Flags not
// listed in doc.go are left for other loaders.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:],
		[]string{"-a", "-k", "-m", "-s", "-t", "-b", "-g", "-e", "-u", "-p"},
		"-memory")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.StoreEndpoint, "a", config.StoreEndpoint, "address and port of the store service")
	fs.StringVar(&config.StoreAPIKey, "k", config.StoreAPIKey, "store access key")
	fs.StringVar(&config.AdminEmail, "m", config.AdminEmail, "distinguished admin email")
	fs.StringVar(&config.SessionDBPath, "s", config.SessionDBPath, "session database path")
	fs.BoolVar(&config.Memory, "memory", config.Memory, "use the in-process store")
	fs.StringVar(&config.S3.Bucket, "b", config.S3.Bucket, "S3 bucket for snapshot export")
	fs.StringVar(&config.S3.Region, "g", config.S3.Region, "S3 region")
	fs.StringVar(&config.S3.Endpoint, "e", config.S3.Endpoint, "S3 endpoint")
	fs.StringVar(&config.S3.AccessKey, "u", config.S3.AccessKey, "S3 access key")
	fs.StringVar(&config.S3.SecretKey, "p", config.S3.SecretKey, "S3 secret key")

	timeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.RequestTimeout = time.Duration(*timeout) * time.Second
}
