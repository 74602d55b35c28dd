// Package media provides the playable media handles driven by the showcase
// controller: a metadata prober for MP4 sources and a clock-driven virtual
// player.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gomp4 "github.com/abema/go-mp4"
)

// DefaultMaxProbeBytes bounds how much of a source is fetched to find its
// movie header.
const DefaultMaxProbeBytes = 8 << 20

var (
	// ErrNoSource is returned when a media handle has no URL to load.
	ErrNoSource = errors.New("media: no source url")

	// ErrEmptySource is returned when a source responds with no bytes.
	ErrEmptySource = errors.New("media: empty source")

	// ErrNoDuration is returned when the container carries no usable movie header.
	ErrNoDuration = errors.New("media: container has no duration")

	// ErrUnknownSource is returned by StaticProber for URLs it does not know.
	ErrUnknownSource = errors.New("media: unknown source")
)

// Prober resolves the duration of a media source in seconds.
type Prober interface {
	Probe(ctx context.Context, url string) (float64, error)
}

// HTTPProber fetches a source over HTTP and reads its MP4 movie header.
// Sources whose moov box sits past MaxBytes (non fast-start files) fail with
// ErrNoDuration.
type HTTPProber struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPProber returns a prober using client (http.DefaultClient when nil)
// that reads at most maxBytes of each source (DefaultMaxProbeBytes when <= 0).
func NewHTTPProber(client *http.Client, maxBytes int64) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxProbeBytes
	}
	return &HTTPProber{client: client, maxBytes: maxBytes}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, url string) (float64, error) {
	if url == "" {
		return 0, ErrNoSource
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: %w", url, err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("media: probe %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: %w", url, err)
	}
	if len(body) == 0 {
		return 0, fmt.Errorf("media: probe %s: %w", url, ErrEmptySource)
	}

	seconds, err := DurationOf(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("media: probe %s: %w", url, err)
	}
	return seconds, nil
}

// DurationOf returns the movie duration of an MP4 stream in seconds.
func DurationOf(rs io.ReadSeeker) (float64, error) {
	info, err := gomp4.Probe(rs)
	if err != nil {
		return 0, fmt.Errorf("mp4 probe: %w", err)
	}
	if info.Timescale == 0 || info.Duration == 0 {
		return 0, ErrNoDuration
	}
	return float64(info.Duration) / float64(info.Timescale), nil
}

// StaticProber answers from a fixed table of durations, for catalogs whose
// sources are known ahead of time.
type StaticProber struct {
	Durations map[string]time.Duration
}

// Probe implements Prober.
func (p StaticProber) Probe(ctx context.Context, url string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if url == "" {
		return 0, ErrNoSource
	}
	d, ok := p.Durations[url]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSource, url)
	}
	return d.Seconds(), nil
}
