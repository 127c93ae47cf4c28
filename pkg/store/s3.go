package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/eventlens/pkg/job"
	"github.com/platinummonkey/eventlens/pkg/observability"
)

// s3API is the subset of *s3.Client the store uses
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config locates the bucket reports are written to
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // for MinIO and other S3-compatible services
	PathStyle bool
	AccessKey string
	SecretKey string
}

// S3Store keeps reports as objects:
//
//	<prefix><job>/latest.json
//	<prefix><job>/runs/<started>-<run id>.json
type S3Store struct {
	client  s3API
	bucket  string
	prefix  string
	history int
	tracer  trace.Tracer
}

// NewS3Store creates an S3 client from cfg. With a custom endpoint the
// bucket is created when missing.
func NewS3Store(ctx context.Context, cfg S3Config, history int) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	if cfg.Endpoint != "" {
		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
		}
	}

	return newS3Store(client, cfg.Bucket, cfg.Prefix, history), nil
}

func newS3Store(client s3API, bucket, prefix string, history int) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		history: Options{History: history}.history(),
		tracer:  observability.Tracer(),
	}
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	var exists *types.BucketAlreadyExists
	if err != nil && !errors.As(err, &owned) && !errors.As(err, &exists) {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (s *S3Store) jobPrefix(jobName string) string {
	return s.prefix + jobKey(jobName) + "/"
}

func (s *S3Store) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "S3."+op, trace.WithAttributes(
		attribute.String("s3.operation", op),
		attribute.String("s3.bucket", s.bucket),
		attribute.String("s3.key", key),
	))
}

func (s *S3Store) put(ctx context.Context, key string, data []byte) error {
	ctx, span := s.start(ctx, "PutObject", key)
	defer span.End()
	span.SetAttributes(attribute.Int("content.size", len(data)))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fail(span, err, "failed to upload to s3")
	}
	span.SetStatus(codes.Ok, "object uploaded")
	return nil
}

func (s *S3Store) get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := s.start(ctx, "GetObject", key)
	defer span.End()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			span.SetStatus(codes.Ok, "object not found")
			return nil, ErrNotFound
		}
		return nil, fail(span, err, "failed to get object from s3")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fail(span, err, "failed to read object")
	}
	span.SetStatus(codes.Ok, "object retrieved")
	return data, nil
}

// runKeys lists the run report keys of a job, newest first
func (s *S3Store) runKeys(ctx context.Context, jobName string) ([]string, error) {
	prefix := s.jobPrefix(jobName) + "runs/"
	ctx, span := s.start(ctx, "ListObjectsV2", prefix)
	defer span.End()

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fail(span, err, "failed to list objects")
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	slices.Sort(keys)
	slices.Reverse(keys)

	span.SetStatus(codes.Ok, "objects listed")
	return keys, nil
}

// Save uploads the run report and replaces latest.json, then drops runs
// beyond the history limit
func (s *S3Store) Save(ctx context.Context, report *job.Report) error {
	if err := checkReport(report); err != nil {
		return err
	}
	data, err := encodeReport(report)
	if err != nil {
		return err
	}

	prefix := s.jobPrefix(report.Job)
	if err := s.put(ctx, prefix+"runs/"+runName(report)+".json", data); err != nil {
		return err
	}
	if err := s.put(ctx, prefix+latestFile, data); err != nil {
		return err
	}

	keys, err := s.runKeys(ctx, report.Job)
	if err != nil {
		return err
	}
	for _, key := range keys[min(len(keys), s.history):] {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", path.Base(key), err)
		}
	}
	return nil
}

// Latest downloads latest.json of the job
func (s *S3Store) Latest(ctx context.Context, jobName string) (*job.Report, error) {
	data, err := s.get(ctx, s.jobPrefix(jobName)+latestFile)
	if err != nil {
		return nil, err
	}
	return decodeReport(data)
}

// List downloads the newest run reports of the job
func (s *S3Store) List(ctx context.Context, jobName string, limit int) ([]*job.Report, error) {
	keys, err := s.runKeys(ctx, jobName)
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		keys = keys[:min(len(keys), limit)]
	}

	reports := make([]*job.Report, 0, len(keys))
	for _, key := range keys {
		data, err := s.get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			// pruned since listing
			continue
		} else if err != nil {
			return nil, err
		}
		report, err := decodeReport(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(key), err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// Close is a no-op; the SDK owns its connections
func (s *S3Store) Close() error {
	return nil
}
