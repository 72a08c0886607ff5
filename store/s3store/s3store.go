// Package s3store implements a Loader backed by an S3 bucket. Values are
// stored as JSON objects under a configurable key prefix, which makes the
// bucket shareable between cache instances and inspectable with standard
// tooling.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/caarlos0/env/v11"
)

// Config holds the S3 store settings. All fields can come from the
// environment, which is how the CLI configures the store in containers.
type Config struct {
	Bucket  string        `env:"SHOAL_S3_BUCKET"`
	Prefix  string        `env:"SHOAL_S3_PREFIX" envDefault:"shoal/"`
	Region  string        `env:"SHOAL_S3_REGION"`
	Timeout time.Duration `env:"SHOAL_S3_TIMEOUT" envDefault:"10s"`
}

// ConfigFromEnv reads the SHOAL_S3_* environment variables.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse s3 store env config: %w", err)
	}
	return cfg, nil
}

// api is the slice of the S3 client the store uses. Narrowing the interface
// keeps tests away from the network.
type api interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store is an S3-backed backing store for the cache.
type Store struct {
	client api
	cfg    Config
	logger *slog.Logger
}

// New creates an S3 store using the default AWS credential chain.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store requires a bucket")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &Store{
		client: s3.NewFromConfig(awsCfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// NewWithClient creates a store with a caller-provided client. Used by
// tests and by callers that need custom S3 options (endpoint overrides,
// path-style addressing).
func NewWithClient(client api, cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{client: client, cfg: cfg, logger: logger}
}

// Load fetches the value for key. A missing object returns (nil, nil).
func (s *Store) Load(ctx context.Context, key string) (any, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get s3 object for key %q: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 object body: %w", err)
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("corrupt s3 object for key %q: %w", key, err)
	}

	return value, nil
}

// Put stores the value for key as a JSON object.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value for key %q: %w", key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(s.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3 object for key %q: %w", key, err)
	}

	return nil
}

func (s *Store) objectKey(key string) string {
	return s.cfg.Prefix + key
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}
