package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"kartpitsbot/pkg/helper"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/scoring"
)

// ScoringInput rebuilds the scorer input from a saved state.
func ScoringInput(st model.State) scoring.Input {
	in := scoring.Input{}
	for _, k := range st.Karts {
		in.KartIDs = append(in.KartIDs, k.ID)
	}
	for _, t := range st.Teams {
		ts := scoring.TeamStints{Team: t.Number}
		for _, s := range t.Stints {
			ts.Stints = append(ts.Stints, scoring.StintLaps{KartID: s.KartID, Laps: s.LapTimes})
		}
		in.Teams = append(in.Teams, ts)
	}
	return in
}

// ScoreReport compares the scores saved in st with a fresh computation.
// Karts are listed best first by the fresh score.
func ScoreReport(st model.State, res scoring.Result) string {
	karts := append([]model.Kart{}, st.Karts...)
	fresh := func(id string) *float64 {
		if v, ok := res.Scores[id]; ok {
			return &v
		}
		return nil
	}
	sort.SliceStable(karts, func(i, j int) bool {
		a, b := fresh(karts[i].ID), fresh(karts[j].ID)
		if a == nil || b == nil {
			return a != nil
		}
		return *a > *b
	})

	t := newTable()
	t.AppendHeader(table.Row{"Kart", "Saved", "Now", "Band", "Evidence"})
	for _, k := range karts {
		score := fresh(k.ID)
		if k.Manual {
			score = k.ManualScore
		}
		band := scoring.Band(score)
		if k.Manual && k.ManualColor != "" {
			band = k.ManualColor
		}
		t.AppendRow(table.Row{KartName(k), helper.Score(k.Score), helper.Score(score), band, len(res.Evidence[k.ID])})
	}

	var excluded []string
	for team, ex := range res.Excluded {
		if ex {
			excluded = append(excluded, team)
		}
	}
	sort.Strings(excluded)
	caption := fmt.Sprintf("baseline: %s", helper.LapTime(res.Baseline))
	if len(excluded) > 0 {
		caption += fmt.Sprintf(", ignored teams: %s", strings.Join(excluded, " "))
	}
	t.SetCaption(caption)
	return t.Render()
}
