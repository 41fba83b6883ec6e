package notification

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/model"
)

type sent struct {
	subject string
	message string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeSender) Send(ctx context.Context, subject, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{subject, message})
	return f.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStartAnnouncesEvents(t *testing.T) {
	sender := &fakeSender{}
	m := NewManager(sender, quiet())

	events := make(chan model.Event, 3)
	events <- model.Event{Type: model.EventPitEntry, Team: "12", TakenKart: "K3", TakenBand: "green", Returned: "K1"}
	events <- model.Event{Type: "unknown"}
	events <- model.Event{Type: model.EventTeamExcluded, Team: "4"}
	close(events)

	m.Start(context.Background(), events)

	require.Len(t, sender.sent, 2)
	require.Equal(t, subjectPitEntry, sender.sent[0].subject)
	require.Contains(t, sender.sent[0].message, "Team: 12")
	require.Contains(t, sender.sent[0].message, "K3 (green)")
	require.Contains(t, sender.sent[0].message, "Returned: K1")
	require.Equal(t, subjectTeamExcluded, sender.sent[1].subject)
	require.Contains(t, sender.sent[1].message, "Team 4")
}

func TestSendFailureDoesNotStopTheLoop(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	m := NewManager(sender, quiet())

	events := make(chan model.Event, 2)
	events <- model.Event{Type: model.EventPitEntry, Team: "1"}
	events <- model.Event{Type: model.EventPitEntry, Team: "2"}
	close(events)

	m.Start(context.Background(), events)
	require.Len(t, sender.sent, 2)
}

func TestStartStopsOnCancel(t *testing.T) {
	m := NewManager(&fakeSender{}, quiet())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Start(ctx, make(chan model.Event))
}
