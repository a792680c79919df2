package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Options configures an S3 store.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint (MinIO etc.); enables path-style addressing
	AccessKey string
	SecretKey string
	// Password seals uploaded results. Empty stores them in the clear.
	Password string
}

// S3 stores results in a bucket and fetches sources from any bucket the
// credentials can read.
type S3 struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	password   string
}

// NewS3 loads the default AWS config chain, overridden by any static keys,
// region or endpoint in opts.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	var loaders []func(*awscfg.LoadOptions) error
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucket:     opts.Bucket,
		password:   opts.Password,
	}, nil
}

// Ping checks that the configured bucket is reachable.
func (s *S3) Ping(ctx context.Context) error {
	if s.bucket == "" {
		return errors.New("bucket not configured")
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Fetch downloads s3://bucket/key, unsealing it when it carries the seal header.
// Downloads larger than maxBytes fail.
func (s *S3) Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, string, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, "", err
	}
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, "", mapS3Error(err)
	}
	if head.ContentLength != nil && maxBytes > 0 && *head.ContentLength > maxBytes {
		return nil, "", fmt.Errorf("object is %d bytes, limit is %d", *head.ContentLength, maxBytes)
	}
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return nil, "", mapS3Error(err)
	}
	data, err := Unseal(buf.Bytes(), s.password)
	if err != nil {
		return nil, "", err
	}
	name := key[strings.LastIndex(key, "/")+1:]
	if n, ok := head.Metadata["name"]; ok && n != "" {
		name = n
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int("size", len(data)).Msg("downloaded source from S3")
	return data, name, nil
}

func (s *S3) Put(ctx context.Context, key string, data []byte, meta map[string]string) (Location, error) {
	body := data
	md := map[string]string{}
	for k, v := range meta {
		md[strings.ToLower(k)] = v
	}
	if s.password != "" {
		sealed, err := Seal(data, s.password)
		if err != nil {
			return Location{}, fmt.Errorf("failed to seal result: %w", err)
		}
		body = sealed
		md["encrypted"] = "true"
		md["encryption-format"] = sealMagic
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/vnd.openxmlformats-officedocument.wordprocessingml.document"),
		Metadata:    md,
	})
	if err != nil {
		return Location{}, fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("key", key).Bool("sealed", s.password != "").Msg("uploaded result to S3")
	return Location{Backend: "s3", Key: key, URL: fmt.Sprintf("s3://%s/%s", s.bucket, key)}, nil
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	buf := manager.NewWriteAtBuffer(nil)
	if _, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)}); err != nil {
		return nil, mapS3Error(err)
	}
	return Unseal(buf.Bytes(), s.password)
}

func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	return err
}

func mapS3Error(err error) error {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
