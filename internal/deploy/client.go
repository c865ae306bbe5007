package deploy

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shipsite/shipsite/internal/errors"
)

// DefaultRegion is used when neither the deploy config nor the AWS
// configuration chain names a region.
const DefaultRegion = "us-east-1"

// Uploader is the part of the S3 API used by deploy. *s3.Client satisfies it.
type Uploader interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ Uploader = (*s3.Client)(nil)

// NewS3Client creates an S3 client from the SDK's default configuration
// chain: environment, shared config and credentials files, SSO and instance
// roles. A non-empty region overrides the chain's region. A non-empty
// endpoint selects an S3-compatible service with path-style addressing.
//
// Credentials are resolved lazily, so missing credentials surface as the
// SDK's own error on the first request.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E121").
			WithDetail("Failed to load the AWS configuration").
			Wrap(err)
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}
