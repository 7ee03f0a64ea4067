// Package storage archives meeting recordings and activity QR codes to an
// S3-compatible object store.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/communitymeet/backend/config"
)

const (
	// FolderQRCodes is the object prefix for activity QR code images.
	FolderQRCodes = "qrcodes"
)

// Store provides object storage operations against the configured bucket.
type Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      config.StorageConfig
	logger   *zap.Logger
}

// New creates an object store client. A custom endpoint switches the client
// to path-style addressing for OBS-compatible stores.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("object store using default credential chain")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &Store{client: client, uploader: uploader, cfg: cfg, logger: logger}, nil
}

// RecordingKey returns the archive key for a finished recording. SIG
// meetings shard by group so one group's replays sit together.
func RecordingKey(meetingType int, groupName, meetingCode string) string {
	switch meetingType {
	case 2:
		return path.Join("msg", meetingCode+".mp4")
	case 3:
		return path.Join("tech", meetingCode+".mp4")
	default:
		return path.Join("sig", groupName, meetingCode+".mp4")
	}
}

// QRCodeKey returns the object key for an activity QR code image.
func QRCodeKey(activityID string) string {
	return path.Join(FolderQRCodes, activityID+".png")
}

// Upload streams a reader into the bucket with public-read access and
// returns the public object URL. Recordings get an attachment disposition
// so browsers download instead of inline-play.
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64, metadata map[string]string) (string, error) {
	var lengthPtr *int64
	if contentLength > 0 {
		lengthPtr = &contentLength
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: lengthPtr,
		ACL:           types.ObjectCannedACLPublicRead,
		Metadata:      metadata,
	}
	if strings.HasSuffix(key, ".mp4") {
		input.ContentDisposition = aws.String("attachment")
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	url := s.ObjectURL(key)
	s.logger.Info("object uploaded", zap.String("key", key), zap.Int64("size", contentLength))
	return url, nil
}

// ObjectURL returns the public URL for an object in the bucket.
func (s *Store) ObjectURL(key string) string {
	if s.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.cfg.Endpoint, "/"), s.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// Delete removes an object from the bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
