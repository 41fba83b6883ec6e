package model

import (
	"fmt"
	"time"
)

// Observation is one normalized timing record extracted from a feed payload.
type Observation struct {
	TeamNumber     string   `json:"teamNumber"`
	TeamName       string   `json:"teamName,omitempty"`
	KartNumber     string   `json:"kartNumber,omitempty"`
	LapTimeSeconds float64  `json:"lapTimeSeconds"`
	BestLapSeconds *float64 `json:"bestLapSeconds,omitempty"`
	Position       *int     `json:"position,omitempty"`
}

type Kart struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	LapTimes    []float64 `json:"lapTimes"`
	Score       *float64  `json:"score"`
	Band        string    `json:"band"`
	Manual      bool      `json:"manual"`
	ManualScore *float64  `json:"manualScore,omitempty"`
	ManualColor string    `json:"manualColor,omitempty"`
}

type Stint struct {
	KartID   string    `json:"kartId"`
	LapTimes []float64 `json:"lapTimes"`
}

type Team struct {
	Number         string  `json:"number"`
	CurrentKartID  string  `json:"currentKartId,omitempty"`
	PreviousKartID string  `json:"previousKartId,omitempty"`
	Stints         []Stint `json:"stints"`
	Excluded       bool    `json:"excluded"`
}

// LiveTiming is the presentation-only snapshot of one team's latest timing.
type LiveTiming struct {
	TeamKey   string  `json:"teamKey"`
	Name      string  `json:"name,omitempty"`
	KartLabel string  `json:"kartLabel,omitempty"`
	LastLap   float64 `json:"lastLap"`
	BestLap   float64 `json:"bestLap"`
	Position  int     `json:"position,omitempty"`
}

type Status struct {
	Kind         string    `json:"kind"`
	Message      string    `json:"message"`
	Observations int       `json:"observations"`
	At           time.Time `json:"at"`
}

func (s Status) String() string {
	if s.Kind == "" {
		return "idle"
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.Message)
}

// State is an immutable copy of a race session, used for rendering and export.
type State struct {
	PitRows    [][]string   `json:"pitRows"`
	Karts      []Kart       `json:"karts"`
	Teams      []Team       `json:"teams"`
	LiveTiming []LiveTiming `json:"liveTiming"`
	Status     Status       `json:"status"`
	Baseline   float64      `json:"baseline,omitempty"`
	ExportedAt time.Time    `json:"exportedAt"`
}

// KartByID returns the kart with the given id, if present.
func (s State) KartByID(id string) (Kart, bool) {
	for _, k := range s.Karts {
		if k.ID == id {
			return k, true
		}
	}
	return Kart{}, false
}

const (
	EventPitEntry     = "pitEntry"
	EventTeamExcluded = "teamExcluded"
)

// Event announces a discrete change that is worth notifying about.
type Event struct {
	Type      string `json:"type"`
	Team      string `json:"team"`
	Row       int    `json:"row,omitempty"`
	TakenKart string `json:"takenKart,omitempty"`
	TakenBand string `json:"takenBand,omitempty"`
	Returned  string `json:"returnedKart,omitempty"`
}

func (e Event) String() string {
	switch e.Type {
	case EventPitEntry:
		msg := fmt.Sprintf("  ▸ Team: %s\n  ▸ Row: %d\n  ▸ Took: %s (%s)", e.Team, e.Row+1, e.TakenKart, e.TakenBand)
		if e.Returned != "" {
			msg += fmt.Sprintf("\n  ▸ Returned: %s", e.Returned)
		}
		return msg
	case EventTeamExcluded:
		return fmt.Sprintf("  ▸ Team %s lap times are inconsistent, ignored for kart scoring", e.Team)
	}
	return e.Type
}
