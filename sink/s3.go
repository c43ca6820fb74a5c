package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/drunlade/go-ymodem/ymodem"
)

// DefaultUploadTimeout bounds a single PutObject call.
const DefaultUploadTimeout = 30 * time.Second

// S3Config holds configuration for the S3 sink.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
	// MaxSize rejects files announced larger than this. Zero means no limit.
	// The whole file is held in memory until it is uploaded.
	MaxSize uint64
	// UploadTimeout bounds the upload (default 30s).
	UploadTimeout time.Duration
	// Logger receives progress messages.
	Logger ymodem.Logger
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// objectPutter is the part of *s3.Client the sink needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 buffers a received file and uploads it once the sender confirms its end.
type S3 struct {
	config S3Config
	client objectPutter
	ctx    context.Context

	name   string
	buf    bytes.Buffer
	limit  limiter
	active bool

	location string
	err      error
}

// NewS3 creates an S3 sink. Uses AWS SDK default credential chain
// (env vars, shared config, IAM role).
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Create S3 client with optional endpoint and path-style overrides
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3(ctx, cfg, s3.NewFromConfig(awsConfig, s3Opts...)), nil
}

func newS3(ctx context.Context, cfg S3Config, client objectPutter) *S3 {
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = ymodem.NoopLogger{}
	}
	return &S3{config: cfg, client: client, ctx: ctx}
}

// HandleFileEvent implements ymodem.FileSink.
func (s *S3) HandleFileEvent(ev ymodem.FileEvent) error {
	switch ev.Kind {
	case ymodem.FileEventName:
		return s.open(ev.Name, ev.Size)
	case ymodem.FileEventData:
		if !s.active {
			return ErrNoFile
		}
		data := s.limit.trim(ev.Data)
		if s.config.MaxSize > 0 && uint64(s.buf.Len()+len(data)) > s.config.MaxSize {
			return fmt.Errorf("%w: %s", ErrTooLarge, s.name)
		}
		s.buf.Write(data)
	case ymodem.FileEventEnd:
		s.err = s.upload()
		return s.err
	case ymodem.FileEventAborted:
		s.reset()
	}
	return nil
}

func (s *S3) open(name string, size uint64) error {
	s.reset()

	base, err := cleanName(name)
	if err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	if s.config.MaxSize > 0 && size > s.config.MaxSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, base, size, s.config.MaxSize)
	}

	s.name = base
	s.limit = newLimiter(size)
	s.active = true
	s.location = ""
	s.err = nil
	if size > 0 {
		s.buf.Grow(int(size))
	}
	return nil
}

func (s *S3) key() string {
	if s.config.Prefix == "" {
		return s.name
	}
	return path.Join(s.config.Prefix, s.name)
}

func (s *S3) upload() error {
	if !s.active {
		return ErrNoFile
	}
	defer s.reset()

	key := s.key()
	ctx, cancel := context.WithTimeout(s.ctx, s.config.UploadTimeout)
	defer cancel()

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.config.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(s.buf.Bytes()),
		ContentLength: aws.Int64(int64(s.buf.Len())),
	})
	if err != nil {
		s.config.Logger.Error("S3: upload %s failed: %v", key, err)
		return fmt.Errorf("sink: upload s3://%s/%s: %w", s.config.Bucket, key, err)
	}

	s.location = fmt.Sprintf("s3://%s/%s", s.config.Bucket, key)
	s.config.Logger.Info("S3: stored %s (%d bytes)", s.location, s.buf.Len())
	return nil
}

func (s *S3) reset() {
	s.buf.Reset()
	s.active = false
}

// Location implements Sink.
func (s *S3) Location() string { return s.location }

// Err implements Sink.
func (s *S3) Err() error { return s.err }

var _ Sink = (*S3)(nil)
