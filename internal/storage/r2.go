// Package storage uploads thumbnail images to a Cloudflare R2 bucket over
// the S3 API.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcuredefined/backend/internal/models"
	"github.com/mcuredefined/backend/pkg/logger"
)

// DefaultImageLink is served when a write carries no usable image payload.
const DefaultImageLink = "https://i.imgur.com/JloNMTG.png"

// R2 presents S3-compatible storage but ignores regions; the SDK still wants
// one.
const r2Region = "auto"

var extensionByMIME = map[string]string{
	"image/png":     "png",
	"image/jpeg":    "jpg",
	"image/jpg":     "jpg",
	"image/gif":     "gif",
	"image/webp":    "webp",
	"image/svg+xml": "svg",
}

// Config carries the R2 connection settings.
type Config struct {
	AccountID       string `mapstructure:"account_id"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	// PublicBaseURL is the public hostname the bucket is served from.
	PublicBaseURL string `mapstructure:"public_base_url"`
	// Folder prefixes every uploaded object key.
	Folder string `mapstructure:"folder"`
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// R2Store uploads and deletes thumbnail objects.
type R2Store struct {
	client  objectAPI
	bucket  string
	baseURL string
	folder  string
	log     *zap.Logger
}

// New connects to the account's R2 endpoint.
func New(ctx context.Context, cfg Config) (*R2Store, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("storage: r2 credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(r2Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return &R2Store{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		folder:  strings.Trim(cfg.Folder, "/"),
		log:     logger.WithModule("storage"),
	}, nil
}

// Process turns an arbitrary thumbnail payload into a {link, key} record.
//
// A base64 data URI is uploaded and gets a generated key. An already-stored
// {link, key} map passes through untouched, as does a plain http(s) link
// with an empty key. Anything else falls back to the default image.
func (s *R2Store) Process(ctx context.Context, payload any) (models.Record, error) {
	switch value := payload.(type) {
	case nil:
		return defaultImageRecord(), nil
	case map[string]any:
		link, _ := value["link"].(string)
		if link == "" {
			return defaultImageRecord(), nil
		}
		key, _ := value["key"].(string)
		return models.Record{"link": link, "key": key}, nil
	case models.Record:
		return s.Process(ctx, map[string]any(value))
	case string:
		if mime, data, ok := parseDataURI(value); ok {
			return s.upload(ctx, mime, data)
		}
		if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
			return models.Record{"link": value, "key": ""}, nil
		}
		return defaultImageRecord(), nil
	default:
		return defaultImageRecord(), nil
	}
}

func (s *R2Store) upload(ctx context.Context, mime string, data []byte) (models.Record, error) {
	ext, ok := extensionByMIME[mime]
	if !ok {
		return nil, fmt.Errorf("storage: unsupported image type %s", mime)
	}

	key := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	if s.folder != "" {
		key = s.folder + "/" + key
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: upload %s: %w", key, err)
	}

	s.log.Info("image uploaded", zap.String("key", key), zap.Int("bytes", len(data)))
	return models.Record{"link": s.linkFor(key), "key": key}, nil
}

// Delete removes a previously uploaded object. An empty key, which marks the
// default or an external image, is a no-op.
func (s *R2Store) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}

	s.log.Info("image deleted", zap.String("key", key))
	return nil
}

func (s *R2Store) linkFor(key string) string {
	if s.baseURL == "" {
		return key
	}
	return s.baseURL + "/" + key
}

// IsUploadable reports whether payload is a base64 data URI of a supported
// image type.
func IsUploadable(payload string) bool {
	mime, _, ok := parseDataURI(payload)
	if !ok {
		return false
	}
	_, supported := extensionByMIME[mime]
	return supported
}

func defaultImageRecord() models.Record {
	return models.Record{"link": DefaultImageLink, "key": ""}
}

// parseDataURI splits a data:image/...;base64,... payload into its MIME type
// and decoded bytes.
func parseDataURI(payload string) (string, []byte, bool) {
	if !strings.HasPrefix(payload, "data:") {
		return "", nil, false
	}

	rest := strings.TrimPrefix(payload, "data:")
	meta, encoded, found := strings.Cut(rest, ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return "", nil, false
	}

	mime := strings.TrimSuffix(meta, ";base64")
	if !strings.HasPrefix(mime, "image/") {
		return "", nil, false
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, false
	}
	return mime, data, true
}
