package images

import (
	"context"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Lister returns the file names available as product images
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// DirLister lists the regular files of one flat local directory
type DirLister struct {
	Dir string
}

// List returns the directory's file names in lexical order
func (d DirLister) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// S3Config selects the bucket and prefix holding the image files.
// Endpoint is optional and enables S3-compatible stores such as MinIO.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// S3Lister lists object base names under a bucket prefix
type S3Lister struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Lister creates a lister using the default AWS credential chain
func NewS3Lister(ctx context.Context, cfg S3Config) (*S3Lister, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle || cfg.Endpoint != "" {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Lister(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Lister(client *s3.Client, bucket, prefix string) *S3Lister {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Lister{client: client, bucket: bucket, prefix: prefix}
}

// List pages through ListObjectsV2 and returns the base names of the
// objects directly under the prefix, sorted.
func (s *S3Lister) List(ctx context.Context) ([]string, error) {
	var (
		names []string
		token *string
	)
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &s.prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}
		for _, obj := range out.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			// Flat listing only
			if rel == "" || strings.Contains(rel, "/") {
				continue
			}
			names = append(names, path.Base(rel))
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(names)
	return names, nil
}
