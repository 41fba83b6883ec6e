// Package poller drives the periodic fetch, extract and ingest cycle.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"kartpitsbot/pkg/feed"
	"kartpitsbot/pkg/fetcher"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/race"
)

const MinInterval = 2 * time.Second

var (
	ErrNoURL  = errors.New("no feed url configured")
	ErrNoData = errors.New("no timing data found")
)

type Source interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

type Sink interface {
	Ingest(obs []model.Observation) model.State
	RecordStatus(kind, message string, observations int)
}

type Poller struct {
	mu       sync.Mutex
	url      string
	interval time.Duration
	source   Source
	sink     Sink
	logger   *slog.Logger

	// serializes whole cycles, including PollOnce calls from outside Run
	cycleMu sync.Mutex
}

// New returns a Poller. Intervals below MinInterval are raised to it.
func New(url string, interval time.Duration, source Source, sink Sink, logger *slog.Logger) *Poller {
	if interval < MinInterval {
		interval = MinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{url: url, interval: interval, source: source, sink: sink, logger: logger}
}

func (p *Poller) Interval() time.Duration {
	return p.interval
}

func (p *Poller) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// SetURL points the next cycles at another feed.
func (p *Poller) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	p.logger.Info("feed url changed", "url", url)
}

// Run polls until ctx is done. Cycles run back to back on this goroutine, so
// a slow fetch delays the next tick instead of overlapping it.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "url", p.URL(), "interval", p.interval)
	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	if _, err := p.PollOnce(ctx); err != nil && !errors.Is(err, ErrNoURL) {
		p.logger.Debug("poll cycle", "error", err)
	}
}

// PollOnce runs a single cycle and returns the number of observations
// ingested. Failures are recorded as session status. A call made while
// another cycle is running waits for it to finish.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	url := p.URL()
	if url == "" {
		return 0, ErrNoURL
	}

	res := p.source.Fetch(ctx, url)
	if !res.Success {
		p.sink.RecordStatus(race.StatusFetchFailed, res.Error, 0)
		return 0, errors.Errorf("fetch %s: %s", url, res.Error)
	}

	obs := feed.Extract(res.Kind, []byte(res.Payload))
	if len(obs) == 0 {
		p.logger.Info("no timing data in feed", "url", url, "kind", res.Kind, "bytes", len(res.Payload))
		p.sink.RecordStatus(race.StatusNoData, "no timing rows found", 0)
		return 0, ErrNoData
	}

	p.sink.Ingest(obs)
	return len(obs), nil
}
