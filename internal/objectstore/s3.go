// Package objectstore keeps finding photos in an S3-compatible bucket and
// hands out time-limited signed URLs for them.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrUnsupportedImage is returned for uploads that are not png, jpeg or webp.
var ErrUnsupportedImage = errors.New("photo must be png, jpeg, or webp")

// ErrEmptyUpload is returned for a zero-byte upload.
var ErrEmptyUpload = errors.New("photo is empty")

// Config describes the bucket connection.
type Config struct {
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string

	// URLTTL is how long signed URLs stay valid. Zero means one hour.
	URLTTL time.Duration
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store uploads photos and signs download URLs.
type Store struct {
	api     objectAPI
	presign presignAPI
	bucket  string
	ttl     time.Duration
}

// New connects to the bucket described by cfg. Path-style addressing is used
// whenever a custom endpoint is set, which is what MinIO and most
// self-hosted gateways expect.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("objectstore: bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(cfg.Endpoint))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return newStore(client, s3.NewPresignClient(client), cfg.Bucket, cfg.URLTTL), nil
}

func newStore(api objectAPI, presign presignAPI, bucket string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{api: api, presign: presign, bucket: bucket, ttl: ttl}
}

// DetectImageType sniffs data and returns its MIME type and file extension.
func DetectImageType(data []byte) (string, string, error) {
	if len(data) == 0 {
		return "", "", ErrEmptyUpload
	}
	switch ct := http.DetectContentType(data); ct {
	case "image/png":
		return ct, ".png", nil
	case "image/jpeg":
		return ct, ".jpg", nil
	case "image/webp":
		return ct, ".webp", nil
	default:
		return "", "", fmt.Errorf("%w (got %s)", ErrUnsupportedImage, ct)
	}
}

// PutPhoto stores a finding photo under a fresh key and returns that key.
func (s *Store) PutPhoto(ctx context.Context, findingID string, data []byte) (string, error) {
	contentType, ext, err := DetectImageType(data)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("findings/%s/%s%s", findingID, uuid.NewString(), ext)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("objectstore: put %s: %w", key, err)
	}
	return key, nil
}

// Delete removes an object. Deleting a missing key is not an error in S3.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("objectstore: delete %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a GET URL for key valid for the configured TTL.
func (s *Store) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("objectstore: presign %s: %w", key, err)
	}
	return req.URL, nil
}
