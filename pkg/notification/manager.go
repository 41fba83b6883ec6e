package notification

import (
	"context"
	"log/slog"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/telegram"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/model"
)

const (
	subjectPitEntry     = "Pit entry"
	subjectTeamExcluded = "Team ignored for kart scoring"
)

// Sender is satisfied by notify.Notifier.
type Sender interface {
	Send(ctx context.Context, subject, message string) error
}

type Manager struct {
	sender Sender
	logger *slog.Logger
}

func NewManager(sender Sender, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{sender: sender, logger: logger}
}

// NewTelegramSender builds a notify sender that posts to every chat in
// chatIDs through the given bot token.
func NewTelegramSender(token string, chatIDs []int64) (*notify.Notify, error) {
	tg, err := telegram.New(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram notifier")
	}
	tg.AddReceivers(chatIDs...)
	return notify.NewWithServices(tg), nil
}

// Start announces events until ctx is done or the channel closes.
func (m *Manager) Start(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev model.Event) {
	subject, ok := subjectOf(ev)
	if !ok {
		return
	}
	m.logger.Info("sending notification", "type", ev.Type, "team", ev.Team)
	if err := m.sender.Send(ctx, subject, ev.String()); err != nil {
		m.logger.Warn("notification failed", "type", ev.Type, "error", err)
	}
}

func subjectOf(ev model.Event) (string, bool) {
	switch ev.Type {
	case model.EventPitEntry:
		return subjectPitEntry, true
	case model.EventTeamExcluded:
		return subjectTeamExcluded, true
	}
	return "", false
}
