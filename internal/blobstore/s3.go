package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/sealpay/internal/common"
	"github.com/dmitrijs2005/sealpay/internal/logging"
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Store keeps blobs as <prefix><id>.bin in one bucket. Pending blobs are
// spooled to a local temp file and uploaded with a single PutObject, so the
// object appears atomically.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	logger logging.Logger
}

func NewS3Store(ctx context.Context, c Config, logger logging.Logger) (*S3Store, error) {
	if c.S3Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrorInput)
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(c.S3Region)}
	if c.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.S3AccessKey, c.S3SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3Client(cfg, func(o *s3.Options) {
		if c.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3StoreWithClient(client, c.S3Bucket, c.S3Prefix, logger), nil
}

func newS3StoreWithClient(client s3API, bucket, prefix string, logger logging.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("module", "blobstore", "backend", BackendS3),
	}
}

func (s *S3Store) key(id string) *string {
	return aws.String(s.prefix + objectName(id))
}

func (s *S3Store) Begin(ctx context.Context) (Pending, error) {
	f, err := os.CreateTemp("", "sealpay-spool-*.bin")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &s3Pending{store: s, f: f}, nil
}

func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) Remove(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: s.key(id)})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	var nf *types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

type s3Pending struct {
	store *S3Store
	f     *os.File
	size  int64
	done  bool
}

func (p *s3Pending) Write(b []byte) (int, error) {
	n, err := p.f.Write(b)
	p.size += int64(n)
	return n, err
}

func (p *s3Pending) cleanup() {
	_ = p.f.Close()
	_ = os.Remove(p.f.Name())
}

func (p *s3Pending) Commit(ctx context.Context, id string) error {
	if p.done {
		return errors.New("pending blob already finished")
	}
	p.done = true
	defer p.cleanup()

	if _, err := p.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool file: %w", err)
	}

	_, err := p.store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.store.bucket),
		Key:           p.store.key(id),
		Body:          p.f,
		ContentLength: aws.Int64(p.size),
		ContentType:   aws.String(common.ContentTypeOctetStream),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (p *s3Pending) Abort(ctx context.Context) error {
	if p.done {
		return nil
	}
	p.done = true
	p.cleanup()
	return nil
}
