package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"live-recorder/internal/platform/config"
	"live-recorder/internal/platform/logger"
	"live-recorder/internal/recorder"
)

// S3 stores recordings in an S3-compatible bucket.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
	log    *slog.Logger
}

var _ recorder.Uploader = (*S3)(nil)

// NewS3 validates cfg and builds a path-style client, which R2, MinIO and
// AWS all accept.
func NewS3(ctx context.Context, cfg config.S3Secrets, log *slog.Logger) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("s3 access_key_id and secret_access_key are required")
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	if log == nil {
		log = logger.Discard()
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    log.With(slog.String("component", "s3")),
	}, nil
}

// Key returns the object key for a local recording.
func (u *S3) Key(localPath string) string {
	return path.Join(u.prefix, filepath.Base(localPath))
}

// Send uploads localPath with a single PutObject.
func (u *S3) Send(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	key := u.Key(localPath)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("video/mp4"),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s/%s: %w", localPath, u.bucket, key, err)
	}
	u.log.Info("recording uploaded", slog.String("bucket", u.bucket), slog.String("key", key), slog.Int64("bytes", info.Size()))
	return nil
}

// Notify logs message; buckets have no notice channel.
func (u *S3) Notify(_ context.Context, message string) error {
	u.log.Info("delivery notice", slog.String("message", message))
	return nil
}
