// Package export writes admin snapshots to S3-compatible object storage.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/lifedash/internal/client/admin"
	"github.com/dmitrijs2005/lifedash/internal/logging"
)

// ErrNotConfigured is returned when no bucket has been set.
var ErrNotConfigured = errors.New("snapshot export is not configured")

// Seams for tests.
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
)

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Exporter struct {
	bucket string
	client objectPutter
	log    logging.Logger
	now    func() time.Time
}

func NewS3Exporter(ctx context.Context, cfg Config, log logging.Logger) (*S3Exporter, error) {
	if cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Exporter{bucket: cfg.Bucket, client: client, log: log.With("module", "export"), now: time.Now}, nil
}

// Export uploads snap as JSON and returns the object key.
func (e *S3Exporter) Export(ctx context.Context, snap admin.Snapshot) (string, error) {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := objectKey(e.now(), uuid.NewString())
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s/%s: %w", e.bucket, key, err)
	}

	e.log.Info(ctx, "snapshot exported", "bucket", e.bucket, "key", key, "users", len(snap.Users))
	return key, nil
}

func objectKey(t time.Time, id string) string {
	return path.Join("snapshots", t.UTC().Format("2006/01/02"), id+".json")
}
