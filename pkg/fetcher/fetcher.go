// Package fetcher retrieves a timing page on behalf of the session. A failed
// fetch is a value, never a panic or a partial payload.
package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"kartpitsbot/pkg/feed"
)

const (
	DefaultTimeout = 15 * time.Second
	UserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	maxPayload = 8 << 20
)

var (
	ErrBadStatus = errors.New("unexpected response status")
	ErrTooLarge  = errors.New("payload too large")
)

type Result struct {
	Success bool      `json:"success"`
	Kind    feed.Kind `json:"type,omitempty"`
	Payload string    `json:"payload,omitempty"`
	Error   string    `json:"error,omitempty"`
}

type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New returns a Fetcher. A nil client gets one with DefaultTimeout.
func New(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch gets url and classifies the body as json or html.
func (f *Fetcher) Fetch(ctx context.Context, url string) Result {
	body, err := f.get(ctx, url)
	if err != nil {
		f.logger.Warn("feed fetch failed", "url", url, "error", err)
		return Result{Success: false, Error: err.Error()}
	}
	return Result{Success: true, Kind: feed.DetectKind(body), Payload: string(body)}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, errors.Errorf("unsupported url %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "requesting feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrBadStatus, "%s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading feed body")
	}
	if len(body) > maxPayload {
		return nil, errors.Wrapf(ErrTooLarge, "more than %d bytes", maxPayload)
	}
	return body, nil
}
