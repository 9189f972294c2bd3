// Package ingest downloads the raw dataset archive and extracts it.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mlengine/pkg/utils"
)

// ErrUnsupportedScheme is returned for source URLs no fetcher handles.
var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// Fetcher copies the object named by src into w.
type Fetcher interface {
	Fetch(ctx context.Context, src *url.URL, w io.Writer) error
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, src *url.URL, w io.Writer) error

func (f FetcherFunc) Fetch(ctx context.Context, src *url.URL, w io.Writer) error {
	return f(ctx, src, w)
}

// Downloader routes a source URL to the fetcher registered for its scheme.
type Downloader struct {
	fetchers map[string]Fetcher
}

// NewDownloader registers http, https, file, s3 and gs fetchers.
// Cloud clients are created on first use.
func NewDownloader() *Downloader {
	httpFetcher := &HTTPFetcher{Client: &http.Client{Timeout: 10 * time.Minute}}
	return &Downloader{fetchers: map[string]Fetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
		"file":  FetcherFunc(fetchFile),
		"s3":    &S3Fetcher{},
		"gs":    &GCSFetcher{},
	}}
}

// Register installs or replaces the fetcher for scheme.
func (d *Downloader) Register(scheme string, f Fetcher) {
	d.fetchers[strings.ToLower(scheme)] = f
}

// Download fetches source into dest. The file appears only once the copy completed.
func (d *Downloader) Download(ctx context.Context, source, dest string) error {
	src, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid source URL %q: %w", source, err)
	}
	fetcher, ok := d.fetchers[strings.ToLower(src.Scheme)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, src.Scheme)
	}

	err = utils.WriteAtomic(dest, 0644, func(w io.Writer) error {
		return fetcher.Fetch(ctx, src, w)
	})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", source, err)
	}
	return nil
}

// HTTPFetcher downloads over http and https.
type HTTPFetcher struct {
	Client *http.Client
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src *url.URL, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

func fetchFile(_ context.Context, src *url.URL, w io.Writer) error {
	path := src.Path
	if src.Host != "" && src.Host != "localhost" {
		path = src.Host + src.Path
	}
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(w, f)
	return err
}

// S3Fetcher downloads s3://bucket/key objects using the default AWS credential chain.
type S3Fetcher struct {
	Client *s3.Client
}

func (f *S3Fetcher) Fetch(ctx context.Context, src *url.URL, w io.Writer) error {
	if f.Client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		f.Client = s3.NewFromConfig(cfg)
	}
	out, err := f.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(src.Host),
		Key:    aws.String(strings.TrimPrefix(src.Path, "/")),
	})
	if err != nil {
		return fmt.Errorf("s3 get failed: %w", err)
	}
	defer func() { _ = out.Body.Close() }()
	_, err = io.Copy(w, out.Body)
	return err
}

// GCSFetcher downloads gs://bucket/object using application default credentials.
type GCSFetcher struct {
	Client *storage.Client
}

func (f *GCSFetcher) Fetch(ctx context.Context, src *url.URL, w io.Writer) error {
	if f.Client == nil {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("failed to create GCS client: %w", err)
		}
		f.Client = client
	}
	r, err := f.Client.Bucket(src.Host).Object(strings.TrimPrefix(src.Path, "/")).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("gcs read failed: %w", err)
	}
	defer func() { _ = r.Close() }()
	_, err = io.Copy(w, r)
	return err
}
