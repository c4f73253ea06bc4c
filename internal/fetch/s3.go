package fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/ppiankov/sito/internal/model"
	"github.com/ppiankov/sito/internal/resource"
)

// s3API is the subset of the S3 client used for downloads
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher downloads s3://bucket/key URIs
type S3Fetcher struct {
	client s3API
	logger *log.Logger
}

// NewS3Fetcher creates an S3 fetcher using the default AWS credential chain
func NewS3Fetcher(ctx context.Context, cfg model.S3Config, logger *log.Logger) (*S3Fetcher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // MinIO/LocalStack
		}
	})

	return newS3Fetcher(client, logger), nil
}

func newS3Fetcher(client s3API, logger *log.Logger) *S3Fetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &S3Fetcher{client: client, logger: logger}
}

// Fetch implements resource.Fetcher
func (f *S3Fetcher) Fetch(ctx context.Context, req resource.FetchRequest) (resource.FetchResult, error) {
	bucket, key, err := splitObjectURI(req.URI)
	if err != nil {
		return resource.FetchResult{}, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return resource.FetchResult{}, fmt.Errorf("s3 get %s: %w", req.URI, err)
	}
	defer func() { _ = out.Body.Close() }()

	total := int64(-1)
	if out.ContentLength != nil {
		total = *out.ContentLength
	}

	path, err := writeBody(req, out.Body, total, 0)
	if err != nil {
		return resource.FetchResult{}, err
	}

	contentType, charsets := parseContentType(aws.ToString(out.ContentType))
	f.logger.Debug("fetched object", "uri", req.URI, "path", path)

	return resource.FetchResult{
		Path: path,
		Meta: resource.FetchMeta{ContentType: contentType, Charsets: charsets},
	}, nil
}
