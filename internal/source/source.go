// Package source fetches the raw center collection payload. The payload is
// returned as bytes; decoding belongs to centers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/benjaminillouz/cemedis-website/internal/logger"
)

// DefaultURL is the CEMEDIS webhook serving the directory.
const DefaultURL = "https://n8n.cemedis.app/webhook/f30c3dc7-e9d6-42b4-961c-9155eadc9799"

// MaxPayload caps how much of a response is read.
const MaxPayload = 16 << 20

var (
	// ErrNetwork covers every failure to obtain the payload.
	ErrNetwork = errors.New("source: network error")
	// ErrStatus is a non-2xx response; it matches ErrNetwork too.
	ErrStatus = fmt.Errorf("%w: unexpected status", ErrNetwork)
)

// Fetcher returns the raw JSON payload of the collection.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// Kinds accepted by New.
const (
	KindHTTP = "http"
	KindS3   = "s3"
	KindFile = "file"
)

// Config selects a fetcher.
type Config struct {
	Kind string
	URL  string
	File string
	S3   S3Config
}

// New builds the fetcher named by cfg.Kind (default http).
func New(cfg Config) (Fetcher, error) {
	switch cfg.Kind {
	case "", KindHTTP:
		u := cfg.URL
		if u == "" {
			u = DefaultURL
		}
		return &HTTPFetcher{URL: u}, nil
	case KindFile:
		if cfg.File == "" {
			return nil, errors.New("source: CENTERS_FILE is empty")
		}
		return FileFetcher{Path: cfg.File}, nil
	case KindS3:
		return NewS3Fetcher(cfg.S3)
	}
	return nil, fmt.Errorf("source: unknown kind %q", cfg.Kind)
}

// HTTPFetcher issues GET with Accept: application/json.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func (f *HTTPFetcher) Name() string { return KindHTTP }

func (f *HTTPFetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	t0 := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		logger.L().Error("centers_http_error", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()
	logger.L().Debug("centers_http_resp", "status", resp.StatusCode, "duration_ms", time.Since(t0).Milliseconds())
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w %d", ErrStatus, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return b, nil
}

// FileFetcher reads a local snapshot of the payload.
type FileFetcher struct{ Path string }

func (f FileFetcher) Name() string { return KindFile }

func (f FileFetcher) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	return b, nil
}

// Reason is the metrics label for a fetch error.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrStatus):
		return "status"
	case errors.Is(err, ErrNetwork):
		return "network"
	}
	return "other"
}
