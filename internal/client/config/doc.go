// Package config loads runtime configuration for the LifeDash client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected with -c/-config or the
//     LIFEDASH_CONFIG environment variable.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the store service
//	-k string   store access key
//	-m string   distinguished admin email
//	-s string   path of the local session database
//	-t int      per-request timeout (seconds)
//	-memory     use the in-process store instead of the service
//	-b string   S3 bucket for admin snapshot export
//	-g string   S3 region
//	-e string   S3 endpoint override
//	-u string   S3 access key
//	-p string   S3 secret key
//
// # JSON schema
//
// Durations accept strings like "10s" or integer nanoseconds:
//
//	{
//	  "store_endpoint": "127.0.0.1:50051",
//	  "store_api_key": "lifedash-anon-key",
//	  "admin_email": "admin@lifedash.local",
//	  "session_db_path": "lifedash-session.db",
//	  "request_timeout": "10s",
//	  "memory": false,
//	  "s3": {"bucket": "snapshots", "region": "us-east-1"}
//	}
package config
