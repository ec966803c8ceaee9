// Package fetch reads manifest and media bytes from the URI schemes the
// ingestion side encounters: http(s) directly and s3 through the AWS SDK.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/byomakase/time-addressable-media-store-tools/internal/store"
)

const requestTimeout = 30 * time.Second

// Fetcher reads the content of a URI. The S3 client is created lazily on the
// first s3:// request so HTTP-only deployments never touch AWS config.
type Fetcher struct {
	http *http.Client

	s3Once sync.Once
	s3     *s3.Client
	s3Err  error
}

// New returns a Fetcher. httpClient may be nil for a default with a 30s
// timeout.
func New(httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	return &Fetcher{http: httpClient}
}

// Get reads the full content of source. Supported schemes are http, https
// and s3. Transport failures are reported as store.ErrUpstream.
func (f *Fetcher) Get(ctx context.Context, source string) ([]byte, error) {
	parsed, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", store.ErrUpstream, source, err)
	}
	switch parsed.Scheme {
	case "http", "https":
		return f.getHTTP(ctx, source)
	case "s3":
		return f.getS3(ctx, parsed.Host, strings.TrimPrefix(parsed.Path, "/"))
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q in %q", store.ErrUpstream, parsed.Scheme, source)
	}
}

func (f *Fetcher) getHTTP(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", store.ErrUpstream, source, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: GET %s: status %d", store.ErrUpstream, source, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) getS3(ctx context.Context, bucket, key string) ([]byte, error) {
	client, err := f.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3://%s/%s: %v", store.ErrUpstream, bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (f *Fetcher) s3Client(ctx context.Context) (*s3.Client, error) {
	f.s3Once.Do(func() {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			f.s3Err = fmt.Errorf("%w: aws config: %v", store.ErrUpstream, err)
			return
		}
		f.s3 = s3.NewFromConfig(cfg)
	})
	return f.s3, f.s3Err
}

// S3 exposes the lazily built S3 client for collaborators that need more
// than plain reads (the prober presigns probe URLs with it).
func (f *Fetcher) S3(ctx context.Context) (*s3.Client, error) {
	return f.s3Client(ctx)
}

// ResolveURI resolves a manifest entry's reference against the manifest's
// own location. Absolute URIs and scheme-relative ("//host/path") references
// pass through untouched.
func ResolveURI(manifestLocation, ref string) string {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
		return ref
	}
	// Not path.Dir: Clean would collapse the "//" after the scheme.
	if i := strings.LastIndex(manifestLocation, "/"); i >= 0 {
		return manifestLocation[:i] + "/" + ref
	}
	return ref
}
