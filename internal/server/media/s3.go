package media

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/profilehub/internal/server/config"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// PutObjectAPI is the part of *s3.Client used by S3Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Uploader on top of S3 PutObject.
type S3Store struct {
	client     PutObjectAPI
	bucket     string
	publicBase string
	now        func() time.Time
}

// NewS3Store builds an S3 client from the server configuration. Path-style
// addressing is used so MinIO and other self-hosted endpoints work.
// MediaPublicBaseURL defaults to S3BaseEndpoint.
func NewS3Store(ctx context.Context, cfg *sc.Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	base := cfg.MediaPublicBaseURL
	if base == "" {
		base = cfg.S3BaseEndpoint
	}

	return NewS3StoreWithClient(client, cfg.S3Bucket, base), nil
}

func NewS3StoreWithClient(client PutObjectAPI, bucket, publicBase string) *S3Store {
	return &S3Store{client: client, bucket: bucket, publicBase: publicBase, now: time.Now}
}

// Upload writes f under folder and returns the stored object.
func (s *S3Store) Upload(ctx context.Context, f *File, folder string) (*Asset, error) {
	if f == nil || f.Body == nil {
		return nil, ErrNoFile
	}

	key := ObjectKey(folder, f.Name, s.now().UTC(), newUUID())

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f.Body,
	}
	if f.ContentType != "" {
		in.ContentType = aws.String(f.ContentType)
	}
	if f.Size > 0 {
		in.ContentLength = aws.Int64(f.Size)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return nil, err
	}

	return &Asset{Key: key, URL: PublicURL(s.publicBase, s.bucket, key)}, nil
}
