package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"entrypass/pkg/platform/sentinel"
)

const deleteBatch = 1000

// S3API is the subset of *s3.Client the store uses.
type S3API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Store keeps assets in one bucket under an optional key prefix.
type S3Store struct {
	client S3API
	bucket string
	prefix string
}

func NewS3Store(client S3API, bucket, prefix string) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// S3Options configures NewS3Client. Endpoint is set for S3-compatible
// services such as MinIO, which also need path-style addressing.
type S3Options struct {
	Region   string
	Endpoint string
}

// loadAWSConfig is swapped in tests.
var loadAWSConfig = awsconfig.LoadDefaultConfig

func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	cfg, err := loadAWSConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (s *S3Store) key(p string) (string, error) {
	c, err := clean(p)
	if err != nil {
		return "", err
	}
	return s.prefix + c, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func (s *S3Store) Stat(ctx context.Context, p string) (int64, error) {
	key, err := s.key(p)
	if err != nil {
		return 0, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("head object: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Copy is a server-side copy; the returned size is read back from the
// destination object.
func (s *S3Store) Copy(ctx context.Context, src, dst string) (int64, error) {
	from, err := s.key(src)
	if err != nil {
		return 0, err
	}
	to, err := s.key(dst)
	if err != nil {
		return 0, err
	}
	_, err = s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(to),
		CopySource: aws.String(copySource(s.bucket, from)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("copy object: %w", err)
	}
	return s.Stat(ctx, dst)
}

func (s *S3Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFound(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) ListSnapshotDirs(ctx context.Context) ([]Dir, error) {
	root := s.prefix + snapshotsDir + "/"
	dirs := map[string]*Dir{}
	var order []string
	err := s.each(ctx, root, func(obj types.Object) {
		rest := strings.TrimPrefix(aws.ToString(obj.Key), root)
		snapshotID, _, ok := strings.Cut(rest, "/")
		if !ok || snapshotID == "" {
			return
		}
		d, seen := dirs[snapshotID]
		if !seen {
			d = &Dir{SnapshotID: snapshotID}
			dirs[snapshotID] = d
			order = append(order, snapshotID)
		}
		d.Size += aws.ToInt64(obj.Size)
		if mod := aws.ToTime(obj.LastModified); mod.After(d.ModTime) {
			d.ModTime = mod
		}
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshot dirs: %w", err)
	}
	out := make([]Dir, 0, len(order))
	for _, snapshotID := range order {
		out = append(out, *dirs[snapshotID])
	}
	return out, nil
}

func (s *S3Store) RemoveDir(ctx context.Context, snapshotID string) (int64, error) {
	dir, err := s.key(SnapshotDir(snapshotID))
	if err != nil {
		return 0, err
	}
	var (
		freed int64
		batch []types.ObjectIdentifier
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		batch = batch[:0]
		return err
	}

	var flushErr error
	err = s.each(ctx, dir+"/", func(obj types.Object) {
		if flushErr != nil {
			return
		}
		freed += aws.ToInt64(obj.Size)
		batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
		if len(batch) == deleteBatch {
			flushErr = flush()
		}
	})
	if err == nil {
		err = flushErr
	}
	if err == nil {
		err = flush()
	}
	if err != nil {
		return 0, fmt.Errorf("remove snapshot dir: %w", err)
	}
	return freed, nil
}

func (s *S3Store) each(ctx context.Context, prefix string, fn func(types.Object)) error {
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

func copySource(bucket, key string) string {
	parts := strings.Split(bucket+"/"+key, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
