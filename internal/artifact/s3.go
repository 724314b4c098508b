package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures the S3 client. Empty credentials fall back to the
// default AWS credential chain.
type S3Options struct {
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Store serves s3://bucket/key references. The bucket comes from each ref.
type S3Store struct {
	client *awss3.Client
}

func NewS3Store(ctx context.Context, opt S3Options) (*S3Store, error) {
	region := opt.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if opt.AccessKey != "" && opt.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("artifact: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if opt.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = aws.String(opt.Endpoint)
			o.UsePathStyle = true
		})
	} else if opt.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}
	return &S3Store{client: awss3.NewFromConfig(awsCfg, s3Opts...)}, nil
}

func (s *S3Store) Get(ctx context.Context, ref Ref) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("artifact: s3 get %s: %w", ref, err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("artifact: s3 read %s: %w", ref, err)
	}
	return b, nil
}

func (s *S3Store) Put(ctx context.Context, ref Ref, data []byte) error {
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("artifact: s3 put %s: %w", ref, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context, prefix Ref) ([]Ref, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(prefix.Bucket),
		Prefix: aws.String(prefix.Key),
	}
	var out []Ref
	for {
		page, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("artifact: s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, Ref{Scheme: prefix.Scheme, Bucket: prefix.Bucket, Key: aws.ToString(obj.Key)})
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		input.ContinuationToken = page.NextContinuationToken
	}
	sortRefs(out)
	return out, nil
}

var (
	_ Store = (*S3Store)(nil)
	_ Store = (*LocalStore)(nil)
	_ Store = (*MemoryStore)(nil)
	_ Store = (*Mux)(nil)
)
