package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"kartpitsbot/pkg/model"
)

// Console prints every published state to w.
type Console struct {
	w      io.Writer
	logger *slog.Logger
}

func NewConsole(w io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{w: w, logger: logger}
}

// Run consumes states until ctx is done or the channel closes.
func (c *Console) Run(ctx context.Context, states <-chan model.State) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if err := c.Print(st); err != nil {
				c.logger.Warn("console render failed", "error", err)
			}
		}
	}
}

func (c *Console) Print(st model.State) error {
	_, err := fmt.Fprintf(c.w, "%s\n%s\n%s\n", PitRows(st), Karts(st), LiveTiming(st))
	return err
}
