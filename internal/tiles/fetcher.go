package tiles

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	_ "golang.org/x/image/webp"
)

// maxTileBytes bounds the body read for one tile
const maxTileBytes = 4 << 20

// ErrBadStatus is returned when the tile server answers with a non-200 status
var ErrBadStatus = errors.New("unexpected tile server status")

// Fetcher downloads and decodes one tile image
type Fetcher interface {
	Fetch(ctx context.Context, url string) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) (image.Image, error)

// Fetch calls f
func (f FetcherFunc) Fetch(ctx context.Context, url string) (image.Image, error) {
	return f(ctx, url)
}

// HTTPFetcher fetches tiles over HTTP(S) and decodes PNG, JPEG or WebP
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher creates a fetcher. Public tile servers require a User-Agent.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch downloads url and decodes the body as an image
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tile request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode tile: %w", err)
	}
	return img, nil
}
