package race

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/pubsub"
	"kartpitsbot/pkg/scoring"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	n := 0
	p := scoring.DefaultParams()
	p.SettlingLaps = 0
	s := NewSession(Options{
		Params: p,
		NewKartID: func() string {
			n++
			return fmt.Sprintf("K%d", n)
		},
		Now:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(s.Close)
	return s
}

func lapObs(team string, lap float64) model.Observation {
	return model.Observation{TeamNumber: team, KartNumber: team, LapTimeSeconds: lap}
}

func teamOf(t *testing.T, st model.State, number string) model.Team {
	t.Helper()
	for _, team := range st.Teams {
		if team.Number == number {
			return team
		}
	}
	t.Fatalf("team %s not found", number)
	return model.Team{}
}

func kartOf(t *testing.T, st model.State, id string) model.Kart {
	t.Helper()
	k, ok := st.KartByID(id)
	require.True(t, ok, "kart %s", id)
	return k
}

func TestSetupRows(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(2, 3))

	st := s.State()
	require.Equal(t, [][]string{{"K1", "K2", "K3"}, {"K4", "K5", "K6"}}, st.PitRows)
	require.Len(t, st.Karts, 6)

	// a second setup discards rows, keeps karts
	require.NoError(t, s.SetupRows(1, 1))
	st = s.State()
	require.Equal(t, [][]string{{"K7"}}, st.PitRows)
	require.Len(t, st.Karts, 7)

	require.ErrorIs(t, s.SetupRows(0, 3), ErrInvalidSetup)
	require.ErrorIs(t, s.SetupRows(2, -1), ErrInvalidSetup)
}

func TestPitEntryRotation(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 3))

	ev, err := s.PitEntry(0, "17")
	require.NoError(t, err)
	require.Equal(t, model.EventPitEntry, ev.Type)
	require.Equal(t, "K1", ev.TakenKart)
	require.Empty(t, ev.Returned)

	st := s.State()
	require.Equal(t, []string{"K2", "K3"}, st.PitRows[0])
	team := teamOf(t, st, "17")
	require.Equal(t, "K1", team.CurrentKartID)
	require.Empty(t, team.PreviousKartID)
	require.Equal(t, "17", kartOf(t, st, "K1").Label)

	ev, err = s.PitEntry(0, "17")
	require.NoError(t, err)
	require.Equal(t, "K2", ev.TakenKart)
	require.Equal(t, "K1", ev.Returned)

	st = s.State()
	require.Equal(t, []string{"K3", "K1"}, st.PitRows[0])
	team = teamOf(t, st, "17")
	require.Equal(t, "K2", team.CurrentKartID)
	require.Equal(t, "K1", team.PreviousKartID)
	require.Len(t, team.Stints, 2)
	require.Equal(t, "K2", team.Stints[1].KartID)
}

func TestPitEntryReturnsKartToTheRowDrawnFrom(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(2, 2)) // [K1 K2] [K3 K4]

	_, err := s.PitEntry(0, "5")
	require.NoError(t, err)
	_, err = s.PitEntry(1, "5")
	require.NoError(t, err)

	st := s.State()
	require.Equal(t, []string{"K2"}, st.PitRows[0])
	require.Equal(t, []string{"K4", "K1"}, st.PitRows[1])
}

func TestPitEntryRemovesOutgoingKartFromOtherRows(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(2, 2)) // [K1 K2] [K3 K4]

	_, err := s.PitEntry(0, "5") // team 5 drives K1, row 0 is [K2]
	require.NoError(t, err)
	// an operator put K1 into row 0 by hand
	s.mu.Lock()
	s.rows[0].Push("K1")
	s.mu.Unlock()

	_, err = s.PitEntry(1, "5")
	require.NoError(t, err)

	st := s.State()
	require.Equal(t, []string{"K2"}, st.PitRows[0])
	require.Equal(t, []string{"K4", "K1"}, st.PitRows[1])
}

func TestPitEntryOnEmptyRowIsRejected(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 1))
	_, err := s.PitEntry(0, "1")
	require.NoError(t, err)
	require.Empty(t, s.State().PitRows[0])

	before := s.State()
	_, err = s.PitEntry(0, "2")
	require.ErrorIs(t, err, ErrEmptyRow)
	require.Equal(t, before, s.State())

	_, err = s.PitEntry(4, "3")
	require.ErrorIs(t, err, ErrUnknownRow)
	_, err = s.PitEntry(0, " ")
	require.ErrorIs(t, err, ErrInvalidTeam)
}

func TestIngestWithoutAssignmentOnlyUpdatesLiveTiming(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 2))

	pos := 3
	best := 70.1
	st := s.Ingest([]model.Observation{
		{TeamNumber: "9", KartNumber: "9", TeamName: "Nine", LapTimeSeconds: 71.5, BestLapSeconds: &best, Position: &pos},
	})

	require.Len(t, st.LiveTiming, 1)
	lt := st.LiveTiming[0]
	require.Equal(t, "9", lt.TeamKey)
	require.Equal(t, "Nine", lt.Name)
	require.Equal(t, 71.5, lt.LastLap)
	require.Equal(t, 70.1, lt.BestLap)
	require.Equal(t, 3, lt.Position)
	require.Empty(t, st.Teams)
	for _, k := range st.Karts {
		require.Empty(t, k.LapTimes)
	}
	require.Equal(t, StatusOK, st.Status.Kind)
}

func TestIngestAppendsToOpenStint(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 2))
	_, err := s.PitEntry(0, "9")
	require.NoError(t, err)

	s.Ingest([]model.Observation{lapObs("9", 72.0)})
	s.Ingest([]model.Observation{lapObs("9", 72.0)}) // repeated poll, same lap
	st := s.Ingest([]model.Observation{lapObs("9", 71.0)})

	team := teamOf(t, st, "9")
	require.Len(t, team.Stints, 1)
	require.Equal(t, []float64{72.0, 71.0}, team.Stints[0].LapTimes)
	require.Equal(t, []float64{72.0, 71.0}, kartOf(t, st, "K1").LapTimes)
	require.Equal(t, 71.0, st.LiveTiming[0].BestLap)
	require.Equal(t, 71.0, st.LiveTiming[0].LastLap)
}

func TestIngestBestLapOnlyImproves(t *testing.T) {
	s := newTestSession(t)
	s.Ingest([]model.Observation{lapObs("4", 70.0)})
	st := s.Ingest([]model.Observation{lapObs("4", 75.0)})
	require.Equal(t, 70.0, st.LiveTiming[0].BestLap)
	require.Equal(t, 75.0, st.LiveTiming[0].LastLap)
}

func TestIngestCapsRetainedLaps(t *testing.T) {
	s := newTestSession(t)
	s.opts.MaxRetainedLaps = 3
	require.NoError(t, s.SetupRows(1, 1))
	_, err := s.PitEntry(0, "1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		s.Ingest([]model.Observation{lapObs("1", 70+float64(i)/10)})
	}
	st := s.State()
	require.InDeltaSlice(t, []float64{70.2, 70.3, 70.4}, kartOf(t, st, "K1").LapTimes, 1e-9)
	require.InDeltaSlice(t, []float64{70.2, 70.3, 70.4}, teamOf(t, st, "1").Stints[0].LapTimes, 1e-9)
}

func TestTeamKey(t *testing.T) {
	require.Equal(t, "12", TeamKey(model.Observation{TeamNumber: "3", KartNumber: "12"}))
	require.Equal(t, "3", TeamKey(model.Observation{TeamNumber: "3"}))
	require.Equal(t, "name:red devils", TeamKey(model.Observation{TeamName: "  Red   Devils"}))
	require.Equal(t, "", TeamKey(model.Observation{}))
}

// drive runs a stint of laps for team on whatever kart it currently holds.
func drive(s *Session, team string, base float64, n int) {
	for i := 0; i < n; i++ {
		// alternate slightly so repeated polls are not mistaken for repeats
		s.Ingest([]model.Observation{lapObs(team, base+float64(i%2)*0.01)})
	}
}

func TestScoresFollowKartSwaps(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 3)) // [K1 K2 K3]

	_, err := s.PitEntry(0, "1") // K1
	require.NoError(t, err)
	drive(s, "1", 72, 5)
	_, err = s.PitEntry(0, "1") // K2, K1 back
	require.NoError(t, err)
	drive(s, "1", 70, 5)

	st := s.State()
	require.InDelta(t, 1000, *kartOf(t, st, "K2").Score, 1e-6)
	require.InDelta(t, 0, *kartOf(t, st, "K1").Score, 1e-6)
	require.InDelta(t, 500, *kartOf(t, st, "K3").Score, 1e-6)
	require.Equal(t, scoring.BandPurple, kartOf(t, st, "K2").Band)
	require.Equal(t, scoring.BandRed, kartOf(t, st, "K1").Band)
}

func TestNoEvidenceLeavesScoresUnset(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 2))
	_, err := s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 72, 5)

	for _, k := range s.State().Karts {
		require.Nil(t, k.Score)
		require.Equal(t, scoring.BandNeutral, k.Band)
	}
}

func TestScoresResetWhenSwappingTeamIsExcluded(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 3)) // [K1 K2 K3]

	_, err := s.PitEntry(0, "1") // K1
	require.NoError(t, err)
	drive(s, "1", 72, 5)
	_, err = s.PitEntry(0, "1") // K2
	require.NoError(t, err)
	drive(s, "1", 70, 5)
	require.NotNil(t, kartOf(t, s.State(), "K2").Score)

	_, err = s.PitEntry(0, "1") // K3
	require.NoError(t, err)
	drive(s, "1", 200, 5)

	st := s.State()
	require.True(t, teamOf(t, st, "1").Excluded)
	for _, k := range st.Karts {
		require.Nil(t, k.Score, k.ID)
		require.Equal(t, scoring.BandNeutral, k.Band, k.ID)
	}
}

func TestManualScoreSurvivesRescoring(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 3))
	_, err := s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 72, 5)

	require.NoError(t, s.SetManualScore("K1", Entered("850")))

	_, err = s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 70, 5)
	s.Rescore()

	st := s.State()
	k1 := kartOf(t, st, "K1")
	require.True(t, k1.Manual)
	require.Equal(t, 850.0, *k1.Score)
	// K1's laps still count as evidence for K2
	require.InDelta(t, 1000, *kartOf(t, st, "K2").Score, 1e-6)

	require.NoError(t, s.ClearOverride("K1"))
	k1 = kartOf(t, s.State(), "K1")
	require.False(t, k1.Manual)
	require.InDelta(t, 0, *k1.Score, 1e-6)
}

func TestManualInputValidation(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 1))
	before := s.State()

	require.ErrorIs(t, s.SetManualScore("K1", Cancelled()), ErrCancelled)
	require.ErrorIs(t, s.SetManualScore("K1", Entered("1001")), ErrInvalidScore)
	require.ErrorIs(t, s.SetManualScore("K1", Entered("abc")), ErrInvalidScore)
	require.ErrorIs(t, s.SetManualScore("K9", Entered("10")), ErrUnknownKart)
	require.ErrorIs(t, s.SetManualColor("K1", Entered("pink")), ErrInvalidColor)
	require.ErrorIs(t, s.SetManualColor("K1", Cancelled()), ErrCancelled)
	require.ErrorIs(t, s.SetLabel("K1", Cancelled()), ErrCancelled)
	require.Equal(t, before, s.State())
}

func TestManualColorAndLabel(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(1, 2))

	require.NoError(t, s.SetManualColor("K1", Entered("Green")))
	k := kartOf(t, s.State(), "K1")
	require.True(t, k.Manual)
	require.Equal(t, scoring.BandGreen, k.Band)
	require.Equal(t, 800.0, *k.Score)

	require.NoError(t, s.SetManualColor("K2", Entered("blue")))
	k = kartOf(t, s.State(), "K2")
	require.True(t, k.Manual)
	require.Nil(t, k.Score)
	require.Equal(t, scoring.BandNeutral, k.Band)

	// entering an empty color clears the override
	require.NoError(t, s.SetManualColor("K1", Entered("")))
	require.False(t, kartOf(t, s.State(), "K1").Manual)

	require.NoError(t, s.SetLabel("K1", Entered(" 42 ")))
	require.Equal(t, "42", kartOf(t, s.State(), "K1").Label)
	require.NoError(t, s.SetLabel("K1", Entered("")))
	require.Equal(t, "", kartOf(t, s.State(), "K1").Label)
}

func TestAddAndRemoveKart(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.SetupRows(2, 1))

	id, err := s.AddKart(1, "spare")
	require.NoError(t, err)
	require.Equal(t, "K3", id)
	require.Equal(t, []string{"K2", "K3"}, s.State().PitRows[1])

	require.NoError(t, s.RemoveKart("K2"))
	st := s.State()
	require.Equal(t, []string{"K3"}, st.PitRows[1])
	_, ok := st.KartByID("K2")
	require.True(t, ok, "removed karts keep their history")

	require.ErrorIs(t, s.RemoveKart("nope"), ErrUnknownKart)
	_, err = s.AddKart(5, "")
	require.ErrorIs(t, err, ErrUnknownRow)
}

func TestInconsistentTeamIsExcludedAndAnnounced(t *testing.T) {
	s := newTestSession(t)
	events := s.Events().Subscribe(pubsub.TopicEvents)
	require.NoError(t, s.SetupRows(1, 4))

	_, err := s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 70, 3)
	_, err = s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 71, 3)
	_, err = s.PitEntry(0, "1")
	require.NoError(t, err)
	drive(s, "1", 200, 3)

	require.True(t, teamOf(t, s.State(), "1").Excluded)

	var sawExclusion bool
	for len(events) > 0 {
		if ev := <-events; ev.Type == model.EventTeamExcluded {
			sawExclusion = true
			require.Equal(t, "1", ev.Team)
		}
	}
	require.True(t, sawExclusion)
}

func TestStatePublishedAfterEachOperation(t *testing.T) {
	s := newTestSession(t)
	states := s.States().Subscribe(pubsub.TopicState)

	require.NoError(t, s.SetupRows(1, 2))
	st := <-states
	require.Len(t, st.PitRows, 1)

	s.RecordStatus(StatusFetchFailed, "timeout", 0)
	st = <-states
	require.Equal(t, StatusFetchFailed, st.Status.Kind)
	require.Len(t, st.Karts, 2)
}

func TestExportStampsTime(t *testing.T) {
	s := newTestSession(t)
	st := s.Export()
	require.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), st.ExportedAt)
}

func TestDemoObservationsFillLiveTiming(t *testing.T) {
	s := newTestSession(t)
	st := s.Ingest(DemoObservations())
	require.Len(t, st.LiveTiming, 3)
	for _, lt := range st.LiveTiming {
		if lt.TeamKey == "3" {
			require.Equal(t, 69.9, lt.BestLap)
			require.Equal(t, 70.2, lt.LastLap)
		}
	}
}
