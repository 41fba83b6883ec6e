package race

import (
	"fmt"
	"math"
	"strings"

	"kartpitsbot/pkg/model"
)

// same lap to the millisecond, the feed is repeating itself
const lapEpsilon = 0.0005

// TeamKey resolves the team an observation belongs to. The feed's kart
// number is the entrant's race number, so it wins over the team number; a
// nameless, numberless observation is keyed by its normalized name.
func TeamKey(o model.Observation) string {
	if k := strings.TrimSpace(o.KartNumber); k != "" {
		return k
	}
	if t := strings.TrimSpace(o.TeamNumber); t != "" {
		return t
	}
	if n := strings.Join(strings.Fields(strings.ToLower(o.TeamName)), " "); n != "" {
		return "name:" + n
	}
	return ""
}

// Ingest folds a batch of observations into the live timing snapshot and the
// stints of teams that currently drive a known kart.
func (s *Session) Ingest(obs []model.Observation) model.State {
	state, _, _ := s.update(func() ([]model.Event, error) {
		appended := 0
		for _, o := range obs {
			if s.ingest(o) {
				appended++
			}
		}
		s.status = model.Status{
			Kind:         StatusOK,
			Message:      fmt.Sprintf("%d observations, %d new laps", len(obs), appended),
			Observations: len(obs),
			At:           s.opts.Now(),
		}
		s.opts.Logger.Debug("observations ingested", "observations", len(obs), "laps", appended)
		return nil, nil
	})
	return state
}

// ingest reports whether the observation added a lap to a stint.
func (s *Session) ingest(o model.Observation) bool {
	key := TeamKey(o)
	if key == "" {
		return false
	}

	entry, seen := s.live[key]
	if !seen {
		entry = &model.LiveTiming{TeamKey: key}
		s.live[key] = entry
		s.liveOrder = append(s.liveOrder, key)
	}
	previousLap := entry.LastLap

	if o.TeamName != "" {
		entry.Name = o.TeamName
	}
	if o.KartNumber != "" {
		entry.KartLabel = o.KartNumber
	}
	if o.Position != nil {
		entry.Position = *o.Position
	}
	if o.LapTimeSeconds > 0 {
		entry.LastLap = o.LapTimeSeconds
		improve(entry, o.LapTimeSeconds)
	}
	if o.BestLapSeconds != nil && *o.BestLapSeconds > 0 {
		improve(entry, *o.BestLapSeconds)
	}

	if o.LapTimeSeconds <= 0 || (seen && math.Abs(previousLap-o.LapTimeSeconds) < lapEpsilon) {
		return false
	}

	team, ok := s.teams[key]
	if !ok || team.CurrentKartID == "" {
		return false
	}
	k, ok := s.karts[team.CurrentKartID]
	if !ok {
		return false
	}

	if n := len(team.Stints); n == 0 || team.Stints[n-1].KartID != team.CurrentKartID {
		team.Stints = append(team.Stints, model.Stint{KartID: team.CurrentKartID, LapTimes: []float64{}})
	}
	open := &team.Stints[len(team.Stints)-1]
	open.LapTimes = appendCapped(open.LapTimes, o.LapTimeSeconds, s.opts.MaxRetainedLaps)
	k.LapTimes = appendCapped(k.LapTimes, o.LapTimeSeconds, s.opts.MaxRetainedLaps)
	return true
}

func improve(entry *model.LiveTiming, lap float64) {
	if entry.BestLap == 0 || lap < entry.BestLap {
		entry.BestLap = lap
	}
}
