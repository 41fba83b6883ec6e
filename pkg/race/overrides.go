package race

import (
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/scoring"
)

// Input is a value supplied by an operator. A cancelled input is distinct
// from an entered empty value: cancelling aborts, entering "" clears.
type Input struct {
	value   string
	entered bool
}

func Cancelled() Input {
	return Input{}
}

func Entered(value string) Input {
	return Input{value: value, entered: true}
}

func (in Input) Value() (string, bool) {
	return strings.TrimSpace(in.value), in.entered
}

// SetManualScore pins a kart's score. An empty value clears the override.
func (s *Session) SetManualScore(kartID string, in Input) error {
	value, ok := in.Value()
	if !ok {
		return ErrCancelled
	}
	if value == "" {
		return s.ClearOverride(kartID)
	}
	score, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
	p := s.params()
	if err != nil || math.IsNaN(score) || score < p.ScoreMin || score > p.ScoreMax {
		return errors.Wrapf(ErrInvalidScore, "%q not in [%g, %g]", value, p.ScoreMin, p.ScoreMax)
	}

	_, _, err = s.update(func() ([]model.Event, error) {
		k, err := s.kart(kartID)
		if err != nil {
			return nil, err
		}
		k.Manual = true
		k.ManualScore = &score
		k.ManualColor = ""
		return nil, nil
	})
	return err
}

// SetManualColor pins a kart to a color band. The manual score becomes the
// band's representative score; neutral has none. An empty value clears.
func (s *Session) SetManualColor(kartID string, in Input) error {
	value, ok := in.Value()
	if !ok {
		return ErrCancelled
	}
	if value == "" {
		return s.ClearOverride(kartID)
	}
	score, ok := scoring.BandScore(value)
	if !ok {
		return errors.Wrapf(ErrInvalidColor, "%q", value)
	}
	band := scoring.Band(score)

	_, _, err := s.update(func() ([]model.Event, error) {
		k, err := s.kart(kartID)
		if err != nil {
			return nil, err
		}
		k.Manual = true
		k.ManualScore = score
		k.ManualColor = band
		return nil, nil
	})
	return err
}

// ClearOverride returns a kart to automatic scoring.
func (s *Session) ClearOverride(kartID string) error {
	_, _, err := s.update(func() ([]model.Event, error) {
		k, err := s.kart(kartID)
		if err != nil {
			return nil, err
		}
		if k.Manual {
			k.Manual = false
			k.ManualScore = nil
			k.ManualColor = ""
			k.Score = nil
		}
		return nil, nil
	})
	return err
}

// SetLabel renames a kart. An entered empty value clears the label.
func (s *Session) SetLabel(kartID string, in Input) error {
	value, ok := in.Value()
	if !ok {
		return ErrCancelled
	}
	_, _, err := s.update(func() ([]model.Event, error) {
		k, err := s.kart(kartID)
		if err != nil {
			return nil, err
		}
		k.Label = value
		return nil, nil
	})
	return err
}

func (s *Session) params() scoring.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Params
}
