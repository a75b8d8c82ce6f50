// Package source opens books from the local filesystem or from
// S3-compatible object storage.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/simp-lee/mobi"
)

const s3Scheme = "s3://"

// ErrObjectTooLarge is returned when a remote object exceeds MaxObjectSize.
var ErrObjectTooLarge = errors.New("source: object too large")

// Ref identifies a book location.
type Ref struct {
	Bucket string // empty for local paths
	Key    string // object key, or the local path
}

// IsS3 reports whether the reference points at object storage.
func (r Ref) IsS3() bool { return r.Bucket != "" }

func (r Ref) String() string {
	if r.IsS3() {
		return s3Scheme + r.Bucket + "/" + r.Key
	}
	return r.Key
}

// ParseRef parses a local path or an s3://bucket/key URL.
func ParseRef(s string) (Ref, error) {
	if !strings.HasPrefix(s, s3Scheme) {
		if s == "" {
			return Ref{}, fmt.Errorf("empty book reference")
		}
		return Ref{Key: s}, nil
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(s, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("invalid s3 reference %q (want s3://bucket/key)", s)
	}
	return Ref{Bucket: bucket, Key: key}, nil
}

// S3Options holds S3 client configuration.
type S3Options struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// objectGetter is the subset of the S3 client used by Opener.
type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Opener resolves references to parsed documents. The S3 client is created
// on first use, so local-only runs never load AWS configuration.
type Opener struct {
	// MaxObjectSize caps the bytes read from object storage.
	MaxObjectSize int64

	s3Opts  S3Options
	docOpts []mobi.Option

	once      sync.Once
	client    objectGetter
	clientErr error
}

// NewOpener returns an Opener. opts are passed to every parsed document.
func NewOpener(s3Opts S3Options, maxObjectSize int64, opts ...mobi.Option) *Opener {
	return &Opener{
		MaxObjectSize: maxObjectSize,
		s3Opts:        s3Opts,
		docOpts:       opts,
	}
}

// Open parses the book at ref.
func (o *Opener) Open(ctx context.Context, ref Ref) (*mobi.Document, error) {
	if !ref.IsS3() {
		return mobi.Open(ref.Key, o.docOpts...)
	}

	data, err := o.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	doc, err := mobi.Parse(data, o.docOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return doc, nil
}

func (o *Opener) fetch(ctx context.Context, ref Ref) ([]byte, error) {
	client, err := o.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	defer result.Body.Close()

	if result.ContentLength != nil && o.MaxObjectSize > 0 && *result.ContentLength > o.MaxObjectSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrObjectTooLarge, ref, *result.ContentLength)
	}

	r := io.Reader(result.Body)
	if o.MaxObjectSize > 0 {
		r = io.LimitReader(result.Body, o.MaxObjectSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", ref, err)
	}
	if o.MaxObjectSize > 0 && int64(len(data)) > o.MaxObjectSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrObjectTooLarge, ref, o.MaxObjectSize)
	}
	return data, nil
}

func (o *Opener) s3Client(ctx context.Context) (objectGetter, error) {
	o.once.Do(func() {
		if o.client != nil {
			return
		}
		o.client, o.clientErr = newS3Client(ctx, o.s3Opts)
	})
	return o.client, o.clientErr
}

// newS3Client builds an S3 client, using static credentials when both keys
// are set and the default credential chain otherwise.
func newS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true // MinIO and similar services
		})
	}
	return s3.NewFromConfig(cfg, clientOpts...), nil
}
