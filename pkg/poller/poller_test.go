package poller

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/feed"
	"kartpitsbot/pkg/fetcher"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/race"
)

type stubSource struct {
	mu    sync.Mutex
	calls int
	res   fetcher.Result
}

func (s *stubSource) Fetch(ctx context.Context, url string) fetcher.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.res
}

func (s *stubSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSink struct {
	mu       sync.Mutex
	ingested [][]model.Observation
	statuses []string
}

func (r *recordingSink) Ingest(obs []model.Observation) model.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingested = append(r.ingested, obs)
	return model.State{}
}

func (r *recordingSink) RecordStatus(kind, message string, observations int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, kind)
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollOnceIngestsObservations(t *testing.T) {
	src := &stubSource{res: fetcher.Result{
		Success: true,
		Kind:    feed.KindHTML,
		Payload: `<table><tr><td>3</td><td>1:11.000</td></tr><tr><td>4</td><td>1:12.000</td></tr></table>`,
	}}
	sink := &recordingSink{}
	p := New("http://timing.local", time.Second, src, sink, quiet())

	n, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, sink.ingested, 1)
	require.Empty(t, sink.statuses)
}

func TestPollOnceRecordsFailures(t *testing.T) {
	sink := &recordingSink{}

	failing := New("http://timing.local", time.Second, &stubSource{res: fetcher.Result{Error: "timeout"}}, sink, quiet())
	_, err := failing.PollOnce(context.Background())
	require.Error(t, err)

	empty := New("http://timing.local", time.Second, &stubSource{res: fetcher.Result{Success: true, Kind: feed.KindHTML, Payload: "<p>Race not started</p>"}}, sink, quiet())
	_, err = empty.PollOnce(context.Background())
	require.ErrorIs(t, err, ErrNoData)

	require.Equal(t, []string{race.StatusFetchFailed, race.StatusNoData}, sink.statuses)
	require.Empty(t, sink.ingested)
}

func TestPollOnceWithoutURL(t *testing.T) {
	src := &stubSource{}
	p := New("", time.Second, src, &recordingSink{}, quiet())
	_, err := p.PollOnce(context.Background())
	require.ErrorIs(t, err, ErrNoURL)
	require.Zero(t, src.count())

	p.SetURL("http://timing.local")
	require.Equal(t, "http://timing.local", p.URL())
}

func TestIntervalHasAFloor(t *testing.T) {
	p := New("", 10*time.Millisecond, &stubSource{}, &recordingSink{}, quiet())
	require.Equal(t, MinInterval, p.Interval())
}

func TestRunPollsImmediatelyAndStopsOnCancel(t *testing.T) {
	src := &stubSource{res: fetcher.Result{Error: "down"}}
	p := New("http://timing.local", time.Second, src, &recordingSink{}, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.count() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

type blockingSource struct {
	mu      sync.Mutex
	active  int
	maxSeen int
	release chan struct{}
}

func (b *blockingSource) Fetch(ctx context.Context, url string) fetcher.Result {
	b.mu.Lock()
	b.active++
	if b.active > b.maxSeen {
		b.maxSeen = b.active
	}
	b.mu.Unlock()

	<-b.release

	b.mu.Lock()
	b.active--
	b.mu.Unlock()
	return fetcher.Result{Error: "down"}
}

func (b *blockingSource) stats() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active, b.maxSeen
}

func TestPollOnceCallsDoNotOverlap(t *testing.T) {
	src := &blockingSource{release: make(chan struct{})}
	p := New("http://timing.local", time.Second, src, &recordingSink{}, quiet())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.PollOnce(context.Background())
		}()
	}

	require.Eventually(t, func() bool {
		active, _ := src.stats()
		return active == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	active, _ := src.stats()
	require.Equal(t, 1, active, "second cycle waits for the first")

	close(src.release)
	wg.Wait()
	_, maxSeen := src.stats()
	require.Equal(t, 1, maxSeen)
}
