package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/dustin/go-humanize"
)

// ErrBucketEmpty indicates S3 publishing without a bucket name.
var ErrBucketEmpty = errors.New("S3 bucket name cannot be empty")

// S3Options configures the S3 publisher. Endpoint and UsePathStyle target
// S3-compatible stores such as MinIO.
type S3Options struct {
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// S3Publisher implements core.ArtifactPublisher with an S3 bucket and
// presigned GET links.
type S3Publisher struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	log     *logger.Logger
}

// NewS3Publisher loads AWS configuration and creates the publisher. Static
// credentials are used when both parts are set; otherwise the default
// provider chain applies.
func NewS3Publisher(ctx context.Context, opts S3Options, log *logger.Logger) (*S3Publisher, error) {
	if opts.Bucket == "" {
		return nil, ErrBucketEmpty
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}

	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// Most S3-compatible stores reject aws-chunked uploads with trailing checksums.
			o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		}

		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Publisher{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		log:     log,
	}, nil
}

// Publish uploads the file at localPath under key.
func (p *S3Publisher) Publish(ctx context.Context, localPath, key string) (core.PublishedArtifact, error) {
	file, size, contentType, err := openArtifact(localPath)
	if err != nil {
		return core.PublishedArtifact{}, err
	}
	defer file.Close()

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return core.PublishedArtifact{}, fmt.Errorf("%w: upload to s3://%s/%s: %w", core.ErrPublish, p.bucket, key, err)
	}

	p.log.Info("Uploaded %s to s3://%s/%s", humanize.Bytes(uint64(size)), p.bucket, key)

	return core.PublishedArtifact{Key: key, Size: size, ContentType: contentType}, nil
}

// LinkFor returns a presigned GET URL valid for expiry.
func (p *S3Publisher) LinkFor(ctx context.Context, artifact core.PublishedArtifact, expiry time.Duration) (string, error) {
	request, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(artifact.Key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("%w: presign s3://%s/%s: %w", core.ErrPublish, p.bucket, artifact.Key, err)
	}

	return request.URL, nil
}

// openArtifact opens the finished podcast and reports its size and content type.
func openArtifact(localPath string) (*os.File, int64, string, error) {
	contentType, err := contentTypeOf(localPath)
	if err != nil {
		return nil, 0, "", fmt.Errorf("%w: %w", core.ErrPublish, err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return nil, 0, "", fmt.Errorf("%w: open artifact: %w", core.ErrPublish, err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, 0, "", fmt.Errorf("%w: stat artifact: %w", core.ErrPublish, err)
	}

	return file, info.Size(), contentType, nil
}
