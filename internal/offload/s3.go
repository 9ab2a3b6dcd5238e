package offload

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

type S3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Store struct {
	uploader S3Uploader
	getter   S3Getter
	logger   *zap.Logger
}

func NewS3Store(logger *zap.Logger, uploader S3Uploader, getter S3Getter) *S3Store {
	return &S3Store{
		uploader: uploader,
		getter:   getter,
		logger:   logger,
	}
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte) (string, error) {
	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("payload offloaded",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	return out.Location, nil
}

func (s *S3Store) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	if out.Body == nil {
		return nil, fmt.Errorf("object %s/%s has no body", bucket, key)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
