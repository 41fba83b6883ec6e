// Package render turns session states into tables and pit board images.
package render

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"kartpitsbot/pkg/helper"
	"kartpitsbot/pkg/model"
)

const shortIDLength = 8

// KartName is the label of a kart, or a short form of its id.
func KartName(k model.Kart) string {
	if k.Label != "" {
		return k.Label
	}
	return ShortID(k.ID)
}

func ShortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

// PitRows renders one line per pit row, front of the row first.
func PitRows(st model.State) string {
	t := newTable()
	t.AppendHeader(table.Row{"Row", "Karts (front first)"})
	for r, row := range st.PitRows {
		slots := make([]string, 0, len(row))
		for _, id := range row {
			k, ok := st.KartByID(id)
			if !ok {
				slots = append(slots, ShortID(id))
				continue
			}
			slots = append(slots, fmt.Sprintf("%s[%s]", KartName(k), k.Band))
		}
		if len(slots) == 0 {
			slots = append(slots, "(empty)")
		}
		t.AppendRow(table.Row{r + 1, strings.Join(slots, " ")})
	}
	return t.Render()
}

// Karts renders the registry with scores and bands.
func Karts(st model.State) string {
	t := newTable()
	t.AppendHeader(table.Row{"Kart", "ID", "Laps", "Score", "Band", "Mode"})
	for _, k := range st.Karts {
		mode := "auto"
		if k.Manual {
			mode = "manual"
		}
		t.AppendRow(table.Row{KartName(k), ShortID(k.ID), len(k.LapTimes), helper.Score(k.Score), k.Band, mode})
	}
	return t.Render()
}

// LiveTiming renders the latest timing, with the gap of each best lap to the
// overall best.
func LiveTiming(st model.State) string {
	best := 0.0
	for _, lt := range st.LiveTiming {
		if lt.BestLap > 0 && (best == 0 || lt.BestLap < best) {
			best = lt.BestLap
		}
	}

	t := newTable()
	t.AppendHeader(table.Row{"Pos", "Team", "Name", "Last", "Best", "Gap"})
	for _, lt := range st.LiveTiming {
		pos := "-"
		if lt.Position > 0 {
			pos = fmt.Sprint(lt.Position)
		}
		t.AppendRow(table.Row{pos, lt.TeamKey, lt.Name, helper.LapTime(lt.LastLap), helper.LapTime(lt.BestLap), helper.Gap(lt.BestLap, best)})
	}
	t.SetCaption("status: %s", st.Status)
	return t.Render()
}

// Observations renders extractor output, used by the extract command.
func Observations(obs []model.Observation) string {
	t := newTable()
	t.AppendHeader(table.Row{"#", "Team", "Kart", "Name", "Lap", "Best", "Pos"})
	for i, o := range obs {
		bestLap, pos := "-", "-"
		if o.BestLapSeconds != nil {
			bestLap = helper.LapTime(*o.BestLapSeconds)
		}
		if o.Position != nil {
			pos = fmt.Sprint(*o.Position)
		}
		t.AppendRow(table.Row{i + 1, o.TeamNumber, o.KartNumber, o.TeamName, helper.LapTime(o.LapTimeSeconds), bestLap, pos})
	}
	return t.Render()
}

// Teams renders the team table with current kart and stint count.
func Teams(st model.State) string {
	t := newTable()
	t.AppendHeader(table.Row{"Team", "Current", "Previous", "Stints", "Scoring"})
	for _, team := range st.Teams {
		scoring := "used"
		if team.Excluded {
			scoring = "excluded"
		}
		t.AppendRow(table.Row{team.Number, kartRef(st, team.CurrentKartID), kartRef(st, team.PreviousKartID), len(team.Stints), scoring})
	}
	return t.Render()
}

func kartRef(st model.State, id string) string {
	if id == "" {
		return "-"
	}
	if k, ok := st.KartByID(id); ok {
		return ShortID(k.ID)
	}
	return ShortID(id)
}
