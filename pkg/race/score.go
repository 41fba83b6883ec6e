package race

import (
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/scoring"
)

// rescore recomputes every automatic kart score from the stints. Callers hold
// s.mu. It returns an event for each team that just became excluded.
func (s *Session) rescore() []model.Event {
	in := scoring.Input{KartIDs: append([]string{}, s.kartOrder...)}
	for _, num := range s.teamOrder {
		t := s.teams[num]
		ts := scoring.TeamStints{Team: num, Stints: make([]scoring.StintLaps, 0, len(t.Stints))}
		for _, st := range t.Stints {
			ts.Stints = append(ts.Stints, scoring.StintLaps{KartID: st.KartID, Laps: st.LapTimes})
		}
		in.Teams = append(in.Teams, ts)
	}

	res := scoring.Compute(s.opts.Params, in)
	s.baseline = res.Baseline

	for _, id := range s.kartOrder {
		k := s.karts[id]
		if k.Manual {
			k.Score = copyFloat(k.ManualScore)
			continue
		}
		if v, ok := res.Scores[id]; ok {
			k.Score = &v
		} else {
			// no evidence left anywhere, e.g. the only swapping team got excluded
			k.Score = nil
		}
	}

	var events []model.Event
	for _, num := range s.teamOrder {
		t := s.teams[num]
		excluded := res.Excluded[num]
		if excluded && !t.Excluded {
			s.opts.Logger.Info("team excluded from kart scoring", "team", num)
			events = append(events, model.Event{Type: model.EventTeamExcluded, Team: num})
		}
		t.Excluded = excluded
	}
	return events
}

// Rescore forces a recomputation, e.g. after the scoring parameters changed.
func (s *Session) Rescore() model.State {
	state, _, _ := s.update(func() ([]model.Event, error) { return nil, nil })
	return state
}

// SetParams replaces the scoring parameters and rescores.
func (s *Session) SetParams(p scoring.Params) model.State {
	state, _, _ := s.update(func() ([]model.Event, error) {
		s.opts.Params = p
		return nil, nil
	})
	return state
}
