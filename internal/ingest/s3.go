package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"path"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3SourceConfig holds configuration for an S3-backed document corpus.
type S3SourceConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Prefix          string
	UsePathStyle    bool
}

// S3Source reads guideline documents from an S3-compatible bucket, so a
// fleet of devices can pull the same corpus from one place.
type S3Source struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Source creates a source for the given bucket and prefix.
func NewS3Source(ctx context.Context, cfg S3SourceConfig) (*S3Source, error) {
	// Custom resolver for S3-compatible endpoints (MinIO, RustFS).
	customResolver := aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if cfg.Endpoint != "" {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		awsconfig.WithEndpointResolverWithOptions(customResolver),
	)
	if err != nil {
		return nil, fmt.Errorf("ingest: failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// Documents lists and downloads every supported object under the prefix,
// sorted by key for deterministic builds. PDF objects go through the same
// text extraction as local files; one that cannot be extracted is returned
// with empty text so the build can record it as invalid and continue.
func (s *S3Source) Documents(ctx context.Context) ([]Document, error) {
	keys, err := s.listKeys(ctx)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		text, err := s.readObject(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("ingest: download %s: %w", key, err)
		}
		docs = append(docs, Document{ID: path.Base(key), Text: text})
	}
	return docs, nil
}

// Fingerprint hashes object keys, sizes, and ETags.
func (s *S3Source) Fingerprint(ctx context.Context) (string, error) {
	h := sha256.New()

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("ingest: list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			fmt.Fprintf(h, "%s|%d|%s\n",
				aws.ToString(obj.Key), aws.ToInt64(obj.Size), aws.ToString(obj.ETag))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *S3Source) listKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingest: list bucket %s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if supportedExtension(key) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *S3Source) readObject(ctx context.Context, key string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", err
	}

	text, err := documentText(path.Base(key), data)
	if err != nil {
		log.Printf("ingest: failed to extract %s: %v", key, err)
		return "", nil
	}
	return text, nil
}
