package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// S3 stores objects in an S3 bucket.
type S3 struct {
	api      s3iface.S3API
	bucket   string
	region   string
	endpoint string
}

// NewS3 wraps an S3 client. Missing bucket or region surfaces on first use.
func NewS3(api s3iface.S3API, bucket, region, endpoint string) *S3 {
	return &S3{api: api, bucket: bucket, region: region, endpoint: strings.TrimRight(endpoint, "/")}
}

// Bucket returns the bucket name.
func (s *S3) Bucket() string {
	return s.bucket
}

func (s *S3) check(op string) error {
	if s.bucket == "" || s.region == "" {
		return services.Wrap(services.ErrConfiguration, "storage", op, "S3 bucket and region must be configured", nil)
	}
	return nil
}

// URL returns the virtual-hosted URL for key, or a path-style URL under the
// custom endpoint.
func (s *S3) URL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Put uploads r to key.
func (s *S3) Put(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) (string, error) {
	if err := s.check("put"); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "storage", "put", "S3 upload failed", err)
	}
	return s.URL(key), nil
}

// Get streams key from the bucket.
func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	if err := s.check("get"); err != nil {
		return nil, Object{}, err
	}
	return s.get(ctx, s.bucket, key)
}

// GetFrom streams key from bucket using this store's client. An empty bucket
// means the store's own.
func (s *S3) GetFrom(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error) {
	if bucket = strings.TrimSpace(bucket); bucket == "" || bucket == s.bucket {
		return s.Get(ctx, key)
	}
	if s.region == "" {
		return nil, Object{}, services.Wrap(services.ErrConfiguration, "storage", "get", "S3 region must be configured", nil)
	}
	return s.get(ctx, bucket, key)
}

func (s *S3) get(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, Object{}, ErrNoObject
		}
		return nil, Object{}, services.Wrap(services.ErrTransient, "storage", "get", "S3 download failed", err)
	}
	obj := Object{
		Key:         key,
		Name:        path.Base(key),
		Size:        aws.Int64Value(out.ContentLength),
		ContentType: aws.StringValue(out.ContentType),
	}
	if out.LastModified != nil {
		obj.LastModified = out.LastModified.UTC()
	}
	if obj.ContentType == "" {
		obj.ContentType = ContentTypeFor(key)
	}
	return out.Body, obj, nil
}

// List walks every page of a delimiter listing under prefix.
func (s *S3) List(ctx context.Context, prefix string) (Listing, error) {
	prefix = cleanPrefix(prefix)
	listing := Listing{Prefix: prefix, Folders: []string{}, Files: []Object{}}
	if err := s.check("list"); err != nil {
		return listing, err
	}
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	err := s.api.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, cp := range page.CommonPrefixes {
			listing.Folders = append(listing.Folders, aws.StringValue(cp.Prefix))
		}
		for _, item := range page.Contents {
			key := aws.StringValue(item.Key)
			if key == prefix {
				continue
			}
			obj := Object{
				Key:         key,
				Name:        path.Base(key),
				Size:        aws.Int64Value(item.Size),
				ContentType: ContentTypeFor(key),
			}
			if item.LastModified != nil {
				obj.LastModified = item.LastModified.UTC()
			}
			listing.Files = append(listing.Files, obj)
		}
		return true
	})
	if err != nil {
		return listing, services.Wrap(services.ErrTransient, "storage", "list", "S3 listing failed", err)
	}
	return listing, nil
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey
	}
	return false
}
