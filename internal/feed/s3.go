// Package feed uploads the suggestions calendar to an S3-compatible bucket so
// members can subscribe to it.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"quorum/internal/ics"
	"quorum/internal/overlap"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const contentType = "text/calendar; charset=utf-8"

// Options locate the bucket. Endpoint is set for S3-compatible stores such as
// MinIO, which also need path-style addressing.
type Options struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Uploader writes the suggestions calendar to one object.
type Uploader struct {
	client *s3.Client
	logger *slog.Logger
	bucket string
	key    string
}

// NewUploader creates an Uploader with static credentials.
func NewUploader(logger *slog.Logger, opts Options) (*Uploader, error) {
	if opts.Bucket == "" || opts.Key == "" {
		return nil, fmt.Errorf("feed bucket and key are required")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	client := s3.New(s3.Options{
		Region:      opts.Region,
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
	}, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Uploader{client: client, logger: logger, bucket: opts.Bucket, key: opts.Key}, nil
}

// Upload replaces the feed object with the given suggestions. An empty list
// uploads a calendar without events.
func (u *Uploader) Upload(ctx context.Context, suggestions []overlap.Suggestion) error {
	var buf bytes.Buffer
	if err := ics.EncodeSuggestions(&buf, suggestions, time.Now()); err != nil {
		return err
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.bucket),
		Key:          aws.String(u.key),
		Body:         bytes.NewReader(buf.Bytes()),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload feed to s3://%s/%s: %w", u.bucket, u.key, err)
	}

	u.logger.Info("Uploaded suggestions feed.", "bucket", u.bucket, "key", u.key, "count", len(suggestions), "bytes", buf.Len())
	return nil
}
