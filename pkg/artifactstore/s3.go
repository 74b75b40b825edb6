package artifactstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds settings for writing artifacts to an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// Prefix is prepended to every object key, such as "builds/6.4.0".
	Prefix string
	UseSSL bool
}

// ErrNotS3URL is returned by ParseS3URL for anything but an s3:// URL.
var ErrNotS3URL = errors.New("not an s3:// URL")

var errAborted = errors.New("upload aborted")

// IsS3URL reports whether the output destination names an S3 bucket.
func IsS3URL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// ParseS3URL parses an "s3://bucket/prefix" destination into its bucket and
// key prefix.
func ParseS3URL(s string) (bucket, prefix string, err error) {
	if !IsS3URL(s) {
		return "", "", fmt.Errorf("%w: %q", ErrNotS3URL, s)
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", err
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("missing bucket name in %q", s)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// NewS3 returns a store that uploads every artifact as an object into the
// configured bucket, creating the bucket on first use. Uploads are streamed;
// the content is never held fully in memory.
//
// The context bounds every upload made through the store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &s3Store{
		ctx:    ctx,
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

type s3Store struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	region string
	prefix string

	initOnce sync.Once
	initErr  error
}

func (s *s3Store) ensureBucket() error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(s.ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(s.ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			s.initErr = fmt.Errorf("create bucket: %w", err)
		}
	})
	return s.initErr
}

func (s *s3Store) Create(name string) (Writer, error) {
	base, err := baseName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureBucket(); err != nil {
		return nil, err
	}
	key := objectKey(s.prefix, base)
	pr, pw := io.Pipe()
	w := &s3Writer{pw: pw, done: make(chan error, 1)}
	go func() {
		// Size -1 makes minio upload in parts as the content arrives.
		_, err := s.client.PutObject(s.ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		})
		pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

func (s *s3Store) Path(name string) string {
	base, err := baseName(name)
	if err != nil {
		base = name
	}
	return "s3://" + s.bucket + "/" + objectKey(s.prefix, base)
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// s3Writer feeds an ongoing upload. Close waits for the upload to finish.
type s3Writer struct {
	pw     *io.PipeWriter
	done   chan error
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return io.ErrClosedPipe
	}
	w.closed = true
	w.pw.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// Abort fails the upload with the given cause, so no object is created and
// any earlier object under the same key is kept.
func (w *s3Writer) Abort(cause error) error {
	if w.closed {
		return nil
	}
	w.closed = true
	if cause == nil {
		cause = errAborted
	}
	w.pw.CloseWithError(cause)
	<-w.done
	return nil
}
