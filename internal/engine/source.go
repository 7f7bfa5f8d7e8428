package engine

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const defaultHTTPBuffer = 256 * 1024

// Source is an opened locator ready for decoding.
type Source struct {
	io.ReadCloser
	Ext string // lower-case extension with dot, e.g. ".mp3"
}

// S3Options configures s3:// locators. Empty keys use the AWS default
// credential chain.
type S3Options struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// SourceOptions configures a SourceOpener.
type SourceOptions struct {
	HTTPBufferSize int
	UserAgent      string
	S3             S3Options
}

// SourceOpener resolves locators to byte streams:
//
//	/path/song.mp3, file:///path/song.mp3   local file
//	http://..., https://...                 streamed GET
//	s3://bucket/key                         S3 GetObject
//	gs://bucket/object                      Cloud Storage reader
type SourceOpener struct {
	opts       SourceOptions
	httpClient *http.Client

	s3Once   sync.Once
	s3Client *s3.S3
	s3Err    error

	gcsOnce   sync.Once
	gcsClient *storage.Client
	gcsErr    error
}

// NewSourceOpener creates an opener. Cloud clients are created on first use.
func NewSourceOpener(opts SourceOptions) *SourceOpener {
	if opts.HTTPBufferSize <= 0 {
		opts.HTTPBufferSize = defaultHTTPBuffer
	}
	return &SourceOpener{opts: opts, httpClient: newStreamingClient()}
}

// Open resolves locator. ctx bounds the open only, not later reads.
func (o *SourceOpener) Open(ctx context.Context, locator string) (*Source, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path (also covers Windows drive letters)
		return openFile(locator)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return openFile(u.Path)
	case "http", "https":
		stream, contentType, err := openHTTP(ctx, o.httpClient, locator, o.opts.UserAgent, o.opts.HTTPBufferSize)
		if err != nil {
			return nil, err
		}
		return &Source{ReadCloser: stream, Ext: extFor(u.Path, contentType)}, nil
	case "s3":
		return o.openS3(ctx, u)
	case "gs":
		return o.openGCS(ctx, u)
	default:
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
}

// Close releases cloud clients.
func (o *SourceOpener) Close() error {
	if o.gcsClient != nil {
		return o.gcsClient.Close()
	}
	return nil
}

func openFile(p string) (*Source, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrap(err, "open file")
	}
	return &Source{ReadCloser: f, Ext: strings.ToLower(filepath.Ext(p))}, nil
}

func (o *SourceOpener) s3Service() (*s3.S3, error) {
	o.s3Once.Do(func() {
		cfg := &aws.Config{Region: aws.String(o.opts.S3.Region)}
		if o.opts.S3.Endpoint != "" {
			cfg.Endpoint = aws.String(o.opts.S3.Endpoint)
			cfg.S3ForcePathStyle = aws.Bool(true)
		}
		if o.opts.S3.AccessKey != "" && o.opts.S3.SecretKey != "" {
			cfg.Credentials = credentials.NewStaticCredentials(o.opts.S3.AccessKey, o.opts.S3.SecretKey, "")
		}
		sess, err := session.NewSession(cfg)
		if err != nil {
			o.s3Err = errors.Wrap(err, "create s3 session")
			return
		}
		o.s3Client = s3.New(sess)
	})
	return o.s3Client, o.s3Err
}

func (o *SourceOpener) openS3(ctx context.Context, u *url.URL) (*Source, error) {
	bucket, key := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, errors.Newf("invalid s3 locator %q", u.String())
	}
	client, err := o.s3Service()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	out, err := client.GetObjectWithContext(reqCtx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if !stop() {
		if err == nil {
			out.Body.Close()
		}
		cancel()
		return nil, errors.Wrap(ctx.Err(), "s3 get object")
	}
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "s3 get object %s/%s", bucket, key)
	}

	zlog.Debug().Str("bucket", bucket).Str("key", key).Msg("s3 object opened")
	return &Source{
		ReadCloser: &cancelCloser{ReadCloser: out.Body, cancel: cancel},
		Ext:        extFor(key, aws.StringValue(out.ContentType)),
	}, nil
}

func (o *SourceOpener) gcsService() (*storage.Client, error) {
	o.gcsOnce.Do(func() {
		// client outlives any single Load
		client, err := storage.NewClient(context.Background())
		if err != nil {
			o.gcsErr = errors.Wrap(err, "create storage client")
			return
		}
		o.gcsClient = client
	})
	return o.gcsClient, o.gcsErr
}

func (o *SourceOpener) openGCS(ctx context.Context, u *url.URL) (*Source, error) {
	bucket, object := u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return nil, errors.Newf("invalid gs locator %q", u.String())
	}
	client, err := o.gcsService()
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, cancel)
	r, err := client.Bucket(bucket).Object(object).NewReader(reqCtx)
	if !stop() {
		if err == nil {
			r.Close()
		}
		cancel()
		return nil, errors.Wrap(ctx.Err(), "gcs open object")
	}
	if err != nil {
		cancel()
		return nil, errors.Wrapf(err, "gcs open object %s/%s", bucket, object)
	}

	return &Source{
		ReadCloser: &cancelCloser{ReadCloser: r, cancel: cancel},
		Ext:        extFor(object, r.Attrs.ContentType),
	}, nil
}

type cancelCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

var contentTypeExt = map[string]string{
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/ogg":    ".ogg",
	"audio/vorbis": ".ogg",
}

// extFor prefers the path extension and falls back to the content type.
func extFor(p, contentType string) string {
	if ext := strings.ToLower(path.Ext(p)); ext != "" {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return contentTypeExt[mt]
	}
	return ""
}
