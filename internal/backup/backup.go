// Package backup snapshots the encrypted vault file to S3-compatible object
// storage. The uploaded blob is the ciphertext exactly as stored on disk.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

// Config locates the target bucket. BaseEndpoint supports MinIO and other
// S3-compatible stores.
type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string

	// Prefix is prepended to every object key. Optional.
	Prefix string
}

type Uploader struct {
	cfg Config

	now func() time.Time
}

func NewUploader(cfg Config) *Uploader {
	return &Uploader{cfg: cfg, now: time.Now}
}

func (u *Uploader) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(u.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			u.cfg.AccessKey,
			u.cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading object storage config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if u.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(u.cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// Snapshot uploads the vault file at vaultPath and returns the object key.
// The key embeds the snapshot time and a random suffix, so snapshots never
// overwrite each other.
func (u *Uploader) Snapshot(ctx context.Context, vaultPath string) (string, error) {
	data, err := os.ReadFile(vaultPath)
	if err != nil {
		return "", fmt.Errorf("reading vault file: %w", err)
	}

	client, err := u.client(ctx)
	if err != nil {
		return "", err
	}

	key := path.Join(u.cfg.Prefix, fmt.Sprintf("%s-%s.vault",
		u.now().UTC().Format("20060102T150405Z"), uuid.NewString()))

	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("uploading vault snapshot: %w", err)
	}
	return key, nil
}
