// Package storage exports frame images to S3-compatible object storage such
// as DigitalOcean Spaces or MinIO.
package storage

import (
	"bytes"
	"context"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/nijaru/videochat/frames"
)

type SpacesConfig struct {
	AccessKey string
	SecretKey string
	Region    string
	// Endpoint overrides the AWS endpoint; path-style addressing is used
	// whenever it is set.
	Endpoint string
	Bucket   string
}

type SpacesClient struct {
	client *s3.Client
	bucket string
}

// NewSpacesClient builds a client from cfg. Without static keys the default
// AWS credential chain is used.
func NewSpacesClient(ctx context.Context, cfg SpacesConfig) (*SpacesClient, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to load SDK config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &SpacesClient{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// FrameKey is the object key a frame is stored under:
// frames/<video_id>/<file name>.
func FrameKey(img frames.Image) string {
	return path.Join("frames", strconv.Itoa(img.VideoID), img.Name())
}

// SaveFrame uploads img and returns its object key.
func (s *SpacesClient) SaveFrame(ctx context.Context, img frames.Image) (string, error) {
	key := FrameKey(img)

	contentType := img.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to save %s to Spaces", key)
	}

	return key, nil
}

// GetFrame downloads the object stored under key.
func (s *SpacesClient) GetFrame(ctx context.Context, key string) ([]byte, string, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to get %s from Spaces", key)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to read %s", key)
	}

	return data, aws.ToString(result.ContentType), nil
}

// HasFrame reports whether img is already stored under FrameKey with the
// same bytes.
func (s *SpacesClient) HasFrame(ctx context.Context, img frames.Image) (bool, error) {
	data, _, err := s.GetFrame(ctx, FrameKey(img))
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, img.Data), nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == 404
}
