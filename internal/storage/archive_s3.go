package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/maxbolgarin/errm"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config defines an S3 compatible object store for dumps.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" env:"ARCHIVE_S3_ENDPOINT"`
	Region    string `yaml:"region" env:"ARCHIVE_S3_REGION" env-default:"us-east-1"`
	AccessKey string `yaml:"access_key" env:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"ARCHIVE_S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"ARCHIVE_S3_BUCKET" env-default:"gitgraph"`
	UseSSL    bool   `yaml:"use_ssl" env:"ARCHIVE_S3_USE_SSL"`
}

// S3Archive stores dumps as objects named <repo>/<key>.txt.
type S3Archive struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

// NewS3Archive builds the client; the bucket is created on first use.
func NewS3Archive(_ context.Context, cfg S3Config) (*S3Archive, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errm.New("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, errm.New("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errm.New("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, errm.Wrap(err, "init s3 client")
	}
	return &S3Archive{client: client, bucket: bucket, region: region}, nil
}

func (a *S3Archive) ensureBucket(ctx context.Context) error {
	a.initOnce.Do(func() {
		exists, err := a.client.BucketExists(ctx, a.bucket)
		if err != nil {
			a.initErr = errm.Wrap(err, "check bucket")
			return
		}
		if exists {
			return
		}
		if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{Region: a.region}); err != nil {
			a.initErr = errm.Wrap(err, "create bucket")
		}
	})
	return a.initErr
}

func objectKey(repo, key string) string {
	return strings.TrimSpace(repo) + "/" + strings.TrimSpace(key) + ".txt"
}

func (a *S3Archive) Store(ctx context.Context, repo, key string, data []byte) error {
	if repo == "" || key == "" {
		return &ValidationError{Message: "repo and key are required"}
	}
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	_, err := a.client.PutObject(ctx, a.bucket, objectKey(repo, key), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	return err
}

func (a *S3Archive) Fetch(ctx context.Context, repo, key string) ([]byte, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	obj, err := a.client.GetObject(ctx, a.bucket, objectKey(repo, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, &NotFoundError{Resource: "dump", Key: repo + "/" + key}
		}
		return nil, err
	}
	return data, nil
}

func (a *S3Archive) Remove(ctx context.Context, repo, key string) error {
	if err := a.ensureBucket(ctx); err != nil {
		return err
	}
	return a.client.RemoveObject(ctx, a.bucket, objectKey(repo, key), minio.RemoveObjectOptions{})
}

func (a *S3Archive) List(ctx context.Context, repo string) ([]string, error) {
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	prefix := strings.TrimSpace(repo) + "/"
	keys := []string{}
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(obj.Key, prefix), ".txt"))
	}
	sort.Strings(keys)
	return keys, nil
}

func (a *S3Archive) Close() error { return nil }
