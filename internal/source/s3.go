package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// S3Config locates the payload object in an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Key       string
}

// S3Fetcher reads the payload from an object, for deployments that mirror
// the webhook output to a bucket.
type S3Fetcher struct {
	client *minio.Client
	bucket string
	key    string
}

func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.Key == "" {
		return nil, errors.New("source: S3_ENDPOINT, S3_BUCKET and S3_KEY are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("source: create s3 client: %v", err)
	}
	logger.L().Info("centers_s3_source", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket, "key", cfg.Key)
	return &S3Fetcher{client: client, bucket: cfg.Bucket, key: cfg.Key}, nil
}

func (f *S3Fetcher) Name() string { return KindS3 }

func (f *S3Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	obj, err := f.client.GetObject(ctx, f.bucket, f.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer obj.Close()
	b, err := io.ReadAll(io.LimitReader(obj, MaxPayload))
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.StatusCode != 0 {
			return nil, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, resp.Code)
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return b, nil
}
