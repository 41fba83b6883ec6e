package race

import (
	"strings"

	"github.com/pkg/errors"

	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/queues"
)

const maxRowSize = 64

// SetupRows replaces every pit row with rows*perRow fresh karts. Karts and
// teams from before keep their history.
func (s *Session) SetupRows(rows, perRow int) error {
	if rows < 1 || perRow < 0 || perRow > maxRowSize {
		return errors.Wrapf(ErrInvalidSetup, "%d rows of %d karts", rows, perRow)
	}
	_, _, err := s.update(func() ([]model.Event, error) {
		s.rows = make([]*queues.Queue[string], rows)
		for r := range s.rows {
			s.rows[r] = queues.NewQueue[string]()
			for i := 0; i < perRow; i++ {
				s.rows[r].Push(s.newKart("").ID)
			}
		}
		s.opts.Logger.Info("pit rows initialized", "rows", rows, "karts_per_row", perRow)
		return nil, nil
	})
	return err
}

func (s *Session) row(index int) (*queues.Queue[string], error) {
	if index < 0 || index >= len(s.rows) {
		return nil, errors.Wrapf(ErrUnknownRow, "row %d", index+1)
	}
	return s.rows[index], nil
}

// PitEntry models a team arriving in pit row rowIndex: it takes the kart at
// the front of the row and its outgoing kart is wheeled to the back of the
// same row. An empty row rejects the entry and changes nothing.
func (s *Session) PitEntry(rowIndex int, teamNumber string) (model.Event, error) {
	teamNumber = strings.TrimSpace(teamNumber)
	if teamNumber == "" {
		return model.Event{}, ErrInvalidTeam
	}

	_, events, err := s.update(func() ([]model.Event, error) {
		row, err := s.row(rowIndex)
		if err != nil {
			return nil, err
		}
		taken, ok := row.Pop()
		if !ok {
			return nil, errors.Wrapf(ErrEmptyRow, "row %d", rowIndex+1)
		}

		t := s.team(teamNumber)
		previous := t.CurrentKartID
		t.PreviousKartID = previous
		t.CurrentKartID = taken
		t.Stints = append(t.Stints, model.Stint{KartID: taken, LapTimes: []float64{}})

		if k, ok := s.karts[taken]; ok {
			k.Label = teamNumber
		}

		if previous != "" {
			for _, r := range s.rows {
				r.Remove(previous)
			}
			row.Push(previous)
		}

		s.opts.Logger.Info("pit entry",
			"team", teamNumber,
			"row", rowIndex+1,
			"taken", taken,
			"returned", previous,
		)
		return []model.Event{{
			Type:      model.EventPitEntry,
			Team:      teamNumber,
			Row:       rowIndex,
			TakenKart: taken,
			Returned:  previous,
		}}, nil
	})
	if err != nil {
		return model.Event{}, err
	}

	return events[0], nil
}

// AddKart introduces a replacement kart at the back of a row.
func (s *Session) AddKart(rowIndex int, label string) (string, error) {
	var id string
	_, _, err := s.update(func() ([]model.Event, error) {
		row, err := s.row(rowIndex)
		if err != nil {
			return nil, err
		}
		id = s.newKart(strings.TrimSpace(label)).ID
		row.Push(id)
		return nil, nil
	})
	return id, err
}

// RemoveKart takes a kart out of every row. Its history stays in the registry.
func (s *Session) RemoveKart(id string) error {
	_, _, err := s.update(func() ([]model.Event, error) {
		if _, err := s.kart(id); err != nil {
			return nil, err
		}
		for _, r := range s.rows {
			r.Remove(id)
		}
		return nil, nil
	})
	return err
}
