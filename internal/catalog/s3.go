// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Z3NTL3/img-shuffle/internal/awsclient"
)

// S3Source serves every object under a bucket prefix. Entries are object
// keys; objects are streamed from GetObject without spooling to disk.
type S3Source struct {
	client *awsclient.S3Client
	bucket string
	prefix string
}

func NewS3Source(client *awsclient.S3Client, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Source) List(ctx context.Context) ([]string, error) {
	ctx, span := s.client.Tracer.Start(ctx, "catalog.S3Source.List",
		trace.WithAttributes(
			attribute.String("bucket", s.bucket),
			attribute.String("prefix", s.prefix),
		))
	defer span.End()

	var entries []string
	paginator := s3.NewListObjectsV2Paginator(s.client.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "list objects failed")
			return nil, describeS3Error("list objects", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			// Zero-byte "folder" placeholders are not images.
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			entries = append(entries, key)
		}
	}
	span.SetAttributes(attribute.Int("entries", len(entries)))
	return entries, nil
}

// Open checks that entry exists with HeadObject and returns a reader that
// issues the GetObject on its first Read. Queued samples therefore hold no
// open stream, which an idle period could leave reset by the server.
func (s *S3Source) Open(ctx context.Context, entry string) (io.ReadCloser, error) {
	_, err := s.client.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(entry),
	})
	if err != nil {
		return nil, describeS3Error("head object "+entry, err)
	}
	return &objectReader{source: s, ctx: context.WithoutCancel(ctx), key: entry}, nil
}

func (s *S3Source) get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, describeS3Error("get object "+key, err)
	}
	return out.Body, nil
}

// objectReader defers GetObject until the first Read. It is not safe for
// concurrent use.
type objectReader struct {
	source *S3Source
	ctx    context.Context
	key    string

	body   io.ReadCloser
	closed bool
}

func (o *objectReader) Read(p []byte) (int, error) {
	if o.closed {
		return 0, fs.ErrClosed
	}
	if o.body == nil {
		body, err := o.source.get(o.ctx, o.key)
		if err != nil {
			return 0, err
		}
		o.body = body
	}
	return o.body.Read(p)
}

func (o *objectReader) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	if o.body == nil {
		return nil
	}
	return o.body.Close()
}

func (s *S3Source) String() string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)
}

// IsNotFound reports whether err came from a missing bucket or key.
func IsNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var noBucket *types.NoSuchBucket
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &noBucket) || errors.As(err, &notFound)
}

func describeS3Error(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("s3 %s: %s: %w", op, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 %s: %w", op, err)
}
