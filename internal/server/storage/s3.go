package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/webstarter/api/internal/server/config"
)

const presignedURLValidityDuration = 10 * time.Minute

// seams for tests
var (
	loadDefaultAWSConfig  = awsconfig.LoadDefaultConfig
	newS3ClientFromConfig = s3.NewFromConfig
	newS3PresignClient    = s3.NewPresignClient
)

// S3Storage stores blobs in a single bucket of an S3-compatible endpoint.
// The client is built lazily on first use.
type S3Storage struct {
	config *config.Config
	client *s3.Client
}

func NewS3Storage(cfg *config.Config) *S3Storage {
	return &S3Storage{config: cfg}
}

func (s *S3Storage) getClient(ctx context.Context) (*s3.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	s.client = newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		// MinIO requires path-style addressing.
		o.UsePathStyle = true
	})

	return s.client, nil
}

func (s *S3Storage) Save(ctx context.Context, name string, r io.Reader) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(name),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("s3 put error: %w", err)
	}
	return nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get error: %w", err)
	}
	return out.Body, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("s3 delete error: %w", err)
	}
	return nil
}

// PresignedPutURL returns a URL a client can PUT the object to directly,
// bypassing the API server.
func (s *S3Storage) PresignedPutURL(ctx context.Context, name string) (string, error) {
	client, err := s.getClient(ctx)
	if err != nil {
		return "", err
	}

	presign := newS3PresignClient(client)
	req, err := presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(presignedURLValidityDuration))
	if err != nil {
		return "", fmt.Errorf("s3 presign error: %w", err)
	}

	return req.URL, nil
}
