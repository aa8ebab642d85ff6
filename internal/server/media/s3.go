// Package media uploads user images to S3-compatible object storage and
// returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/google/uuid"
)

var ErrorEmptyPath = errors.New("empty file path")

// Uploader accepts a local file and returns a durable URL for it.
type Uploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	now = time.Now
)

type S3Options struct {
	User          string
	Password      string
	Bucket        string
	Region        string
	BaseEndpoint  string
	PublicBaseURL string
}

type S3Uploader struct {
	opts   S3Options
	client *s3.Client
	logger logging.Logger
}

// NewS3Uploader builds the client. An empty PublicBaseURL falls back to
// BaseEndpoint.
func NewS3Uploader(ctx context.Context, opts S3Options, logger logging.Logger) (*S3Uploader, error) {
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = opts.BaseEndpoint
	}
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.User,
			opts.Password,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		// MinIO and most self-hosted stores do not support virtual-host addressing.
		o.UsePathStyle = true
	})

	return &S3Uploader{opts: opts, client: client, logger: logger.With("module", "media")}, nil
}

// ObjectKey builds a date-partitioned key that keeps the file extension.
func ObjectKey(localPath string) string {
	d := now()
	return fmt.Sprintf("avatars/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(),
		uuid.New(), strings.ToLower(filepath.Ext(localPath)))
}

// UploadFile stores the file and removes the local copy whether or not the
// upload succeeded.
func (u *S3Uploader) UploadFile(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", ErrorEmptyPath
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			u.logger.Warn(ctx, "failed to remove spooled upload", "path", localPath, "error", err)
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := ObjectKey(localPath)
	in := &s3.PutObjectInput{
		Bucket: aws.String(u.opts.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := putObject(u.client, ctx, in); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}

	u.logger.Debug(ctx, "file uploaded", "key", key)
	return u.PublicURL(key), nil
}

func (u *S3Uploader) PublicURL(key string) string {
	base := strings.TrimRight(u.opts.PublicBaseURL, "/")
	return base + "/" + u.opts.Bucket + "/" + key
}
