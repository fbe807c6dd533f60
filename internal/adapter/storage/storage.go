// Package storage implements app.ImageStore on local disk and on S3.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"prism/internal/app"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	_ app.ImageStore = (*Local)(nil)
	_ app.ImageStore = (*S3)(nil)
)

// Local writes images below a directory served at urlPrefix.
type Local struct {
	dir       string
	urlPrefix string
}

// NewLocal creates the directory if needed.
func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

// Save writes data under key and returns its URL.
func (l *Local) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return l.urlPrefix + "/" + clean, nil
}

// putter is the part of the S3 client the store needs.
type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads images to a bucket.
type S3 struct {
	client    putter
	bucket    string
	publicURL string
}

// NewS3 loads the default AWS credential chain for region. Objects are
// addressed through publicURL, or the bucket's virtual-hosted URL when
// publicURL is empty.
func NewS3(ctx context.Context, bucket, region, publicURL string) (*S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return newS3(s3.NewFromConfig(cfg), bucket, publicURL), nil
}

func newS3(client putter, bucket, publicURL string) *S3 {
	return &S3{client: client, bucket: bucket, publicURL: strings.TrimSuffix(publicURL, "/")}
}

// Save uploads data under key and returns its public URL.
func (s *S3) Save(ctx context.Context, key, contentType string, data []byte) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(clean),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return s.publicURL + "/" + clean, nil
}

// cleanKey rejects keys that would escape the store's root.
func cleanKey(key string) (string, error) {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") {
		return "", errors.New("invalid object key")
	}
	return clean, nil
}
