package backup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAWS(t *testing.T, put func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error)) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	origPut := putObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
		putObject = origPut
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return put(ctx, in)
	}
}

func writeVaultFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vault.dat")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestSnapshot_UploadsCiphertext(t *testing.T) {
	var gotBucket, gotKey string
	var gotBody []byte

	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		gotBucket = aws.ToString(in.Bucket)
		gotKey = aws.ToString(in.Key)
		var err error
		gotBody, err = io.ReadAll(in.Body)
		require.NoError(t, err)
		return &s3.PutObjectOutput{}, nil
	})

	u := NewUploader(Config{Bucket: "backups", Prefix: "vaults"})
	u.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	p := writeVaultFile(t, `{"iv":"aa","salt":"s","data":"zz"}`)
	key, err := u.Snapshot(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, "backups", gotBucket)
	assert.Equal(t, key, gotKey)
	assert.True(t, strings.HasPrefix(key, "vaults/20240301T120000Z-"), "key %q", key)
	assert.True(t, strings.HasSuffix(key, ".vault"))
	assert.Equal(t, `{"iv":"aa","salt":"s","data":"zz"}`, string(gotBody))
}

func TestSnapshot_UniqueKeys(t *testing.T) {
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	})

	u := NewUploader(Config{Bucket: "backups"})
	p := writeVaultFile(t, "x")

	k1, err := u.Snapshot(context.Background(), p)
	require.NoError(t, err)
	k2, err := u.Snapshot(context.Background(), p)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestSnapshot_MissingFile(t *testing.T) {
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		t.Fatal("must not upload when the vault file is unreadable")
		return nil, nil
	})

	u := NewUploader(Config{Bucket: "backups"})
	_, err := u.Snapshot(context.Background(), filepath.Join(t.TempDir(), "missing.dat"))
	assert.Error(t, err)
}

func TestSnapshot_UploadError(t *testing.T) {
	boom := errors.New("denied")
	stubAWS(t, func(ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, boom
	})

	u := NewUploader(Config{Bucket: "backups"})
	p := writeVaultFile(t, "x")

	_, err := u.Snapshot(context.Background(), p)
	assert.True(t, errors.Is(err, boom))
}
