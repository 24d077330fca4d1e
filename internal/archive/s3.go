// Package archive copies originals to S3 before they are rewritten.
package archive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"
)

// Uploader is satisfied by *manager.Uploader.
type Uploader interface {
	Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Archiver stores originals under prefix/<content hash>/<file name>.
// Identical content maps to the same key, so re-runs do not duplicate.
type S3Archiver struct {
	up     Uploader
	bucket string
	prefix string
}

type Options struct {
	Bucket string
	Prefix string
	Region string
}

// NewS3Archiver loads the default AWS credential chain.
func NewS3Archiver(ctx context.Context, opts Options) (*S3Archiver, error) {
	var loadOpts []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewWithUploader(manager.NewUploader(s3.NewFromConfig(cfg)), opts.Bucket, opts.Prefix), nil
}

func NewWithUploader(up Uploader, bucket, prefix string) *S3Archiver {
	return &S3Archiver{up: up, bucket: bucket, prefix: prefix}
}

// Archive uploads the file at path and returns its object key.
func (a *S3Archiver) Archive(ctx context.Context, filePath string) (string, error) {
	sum, size, err := hashFile(filePath)
	if err != nil {
		return "", err
	}
	key := ObjectKey(a.prefix, sum, filepath.Base(filePath))

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()

	out, err := a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(a.bucket),
		Key:                  aws.String(key),
		Body:                 f,
		ContentType:          aws.String("application/pdf"),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata: map[string]string{
			"name":    filepath.Base(filePath),
			"blake2b": sum,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	ev := log.Info().Str("key", key).Int64("size", size)
	if out != nil && out.Location != "" {
		ev = ev.Str("location", out.Location)
	}
	ev.Msg("archived original to S3")
	return key, nil
}

// ObjectKey joins prefix, content hash and file name into an S3 key.
func ObjectKey(prefix, sum, name string) string {
	return path.Join(prefix, sum, name)
}

func hashFile(p string) (string, int64, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
