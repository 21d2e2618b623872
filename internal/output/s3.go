package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/icecasthls/icecasthls/internal/hls"
	"github.com/icecasthls/icecasthls/internal/pipeline/errs"
)

// S3 writes every segment and playlist as an S3 object, keyed by
// prefix+filename. Deletion is gated by "delete-on-expire" so a
// cost-optimisation deployment can leave eviction to a bucket lifecycle
// rule instead of issuing DeleteObject per evicted segment.
type S3 struct {
	bucket          string
	prefix          string
	region          string
	endpoint        string
	accessKeyID     string
	secretAccessKey string
	deleteOnExpire  bool

	client *s3.Client
	engine *hls.Engine
}

// NewS3 builds an unconfigured S3 output.
func NewS3() *S3 { return &S3{} }

func (o *S3) Configure(key, value string) error {
	switch key {
	case "bucket":
		o.bucket = value
	case "prefix":
		o.prefix = value
	case "region":
		o.region = value
	case "endpoint":
		o.endpoint = value
	case "access-key-id":
		o.accessKeyID = value
	case "secret-access-key":
		o.secretAccessKey = value
	case "delete-on-expire":
		o.deleteOnExpire = value == "true" || value == "1"
	case "target-duration", "playlist-length", "init-basename", "playlist-filename", "entry-prefix":
		if o.engine == nil {
			o.engine = hls.New()
		}
		return o.engine.Configure(key, value)
	default:
		return errs.New("output", "s3", errs.KindConfig, fmt.Errorf("unknown key %q", key))
	}
	return nil
}

func (o *S3) Open(src hls.Source) (*hls.Engine, error) {
	if o.bucket == "" {
		return nil, errs.New("output", "s3", errs.KindConfig, fmt.Errorf("s3 output requires a bucket"))
	}

	ctx := context.Background()
	var awsCfg aws.Config
	var err error
	if o.accessKeyID != "" && o.secretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(o.region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.accessKeyID, o.secretAccessKey, "")))
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(o.region))
	}
	if err != nil {
		return nil, errs.New("output", "s3", errs.KindConfig, fmt.Errorf("load AWS config: %w", err))
	}

	opts := []func(*s3.Options){
		func(opt *s3.Options) { opt.UsePathStyle = o.endpoint != "" },
	}
	if o.endpoint != "" {
		opts = append(opts, func(opt *s3.Options) { opt.BaseEndpoint = aws.String(o.endpoint) })
	}
	o.client = s3.NewFromConfig(awsCfg, opts...)

	if o.engine == nil {
		o.engine = hls.New()
	}
	o.engine.Write = o.write
	o.engine.Delete = o.delete
	if err := o.engine.Open(src); err != nil {
		return nil, errs.New("output", "s3", errs.KindFormat, err)
	}
	return o.engine, nil
}

func (o *S3) key(filename string) string {
	return strings.TrimPrefix(o.prefix+filename, "/")
}

func (o *S3) write(filename string, data []byte, mime string) error {
	_, err := o.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(o.bucket),
		Key:         aws.String(o.key(filename)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mime),
	})
	if err != nil {
		return errs.New("output", "s3", errs.KindTransientIO, err)
	}
	return nil
}

func (o *S3) delete(filename string) error {
	if !o.deleteOnExpire {
		return nil
	}
	_, err := o.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key(filename)),
	})
	if err != nil && !isS3NotFound(err) {
		return errs.New("output", "s3", errs.KindTransientIO, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound"
	}
	return false
}

func (o *S3) Close() error { return nil }
