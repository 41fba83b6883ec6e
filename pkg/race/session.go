// Package race owns the state of one race session: the kart registry, the
// team table, the pit rows and the live timing snapshot. Every operation runs
// under a single lock and ends with a rescore and a state publication.
package race

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/pubsub"
	"kartpitsbot/pkg/queues"
	"kartpitsbot/pkg/scoring"
)

const (
	DefaultMaxRetainedLaps = 200

	StatusOK          = "ok"
	StatusNoData      = "no-data"
	StatusFetchFailed = "fetch-failed"
)

var (
	ErrEmptyRow     = errors.New("no kart available in pit row")
	ErrUnknownRow   = errors.New("unknown pit row")
	ErrUnknownKart  = errors.New("unknown kart")
	ErrInvalidTeam  = errors.New("team number is required")
	ErrInvalidScore = errors.New("score out of range")
	ErrInvalidColor = errors.New("unrecognized color")
	ErrInvalidSetup = errors.New("invalid pit row setup")
	ErrCancelled    = errors.New("input cancelled")
)

type Options struct {
	Params          scoring.Params
	MaxRetainedLaps int
	NewKartID       func() string
	Now             func() time.Time
	Logger          *slog.Logger
}

type Session struct {
	mu   sync.Mutex
	opts Options

	karts     map[string]*model.Kart
	kartOrder []string
	teams     map[string]*model.Team
	teamOrder []string
	rows      []*queues.Queue[string]
	live      map[string]*model.LiveTiming
	liveOrder []string
	status    model.Status
	baseline  float64

	states *pubsub.PubSub[model.State]
	events *pubsub.PubSub[model.Event]
}

func NewSession(opts Options) *Session {
	if opts.MaxRetainedLaps <= 0 {
		opts.MaxRetainedLaps = DefaultMaxRetainedLaps
	}
	if opts.NewKartID == nil {
		opts.NewKartID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Params == (scoring.Params{}) {
		opts.Params = scoring.DefaultParams()
	}
	return &Session{
		opts:   opts,
		karts:  map[string]*model.Kart{},
		teams:  map[string]*model.Team{},
		live:   map[string]*model.LiveTiming{},
		states: pubsub.NewPubSub[model.State](),
		events: pubsub.NewPubSub[model.Event](),
	}
}

// States is where every committed state is published, on pubsub.TopicState.
func (s *Session) States() *pubsub.PubSub[model.State] {
	return s.states
}

// Events carries pit entries and exclusions, on pubsub.TopicEvents.
func (s *Session) Events() *pubsub.PubSub[model.Event] {
	return s.events
}

func (s *Session) Close() {
	s.states.Close()
	s.events.Close()
}

// update runs fn under the session lock. On success it rescores, snapshots
// and publishes the result and any events fn returned.
func (s *Session) update(fn func() ([]model.Event, error)) (model.State, []model.Event, error) {
	s.mu.Lock()
	events, err := fn()
	if err != nil {
		s.mu.Unlock()
		return model.State{}, nil, err
	}
	events = append(events, s.rescore()...)
	for i := range events {
		if k, ok := s.karts[events[i].TakenKart]; ok {
			events[i].TakenBand = bandOf(k)
		}
	}
	state := s.snapshot()
	s.mu.Unlock()

	s.states.Publish(pubsub.TopicState, state)
	for _, e := range events {
		s.events.Publish(pubsub.TopicEvents, e)
	}
	return state, events, nil
}

// State returns a copy of the current session.
func (s *Session) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Export is State stamped with the export time.
func (s *Session) Export() model.State {
	st := s.State()
	st.ExportedAt = s.opts.Now()
	return st
}

// RecordStatus stores the outcome of the last feed cycle without touching any
// timing state.
func (s *Session) RecordStatus(kind, message string, observations int) {
	_, _, _ = s.update(func() ([]model.Event, error) {
		s.status = model.Status{Kind: kind, Message: message, Observations: observations, At: s.opts.Now()}
		return nil, nil
	})
}

func (s *Session) snapshot() model.State {
	st := model.State{
		PitRows:    make([][]string, len(s.rows)),
		Karts:      make([]model.Kart, 0, len(s.kartOrder)),
		Teams:      make([]model.Team, 0, len(s.teamOrder)),
		LiveTiming: make([]model.LiveTiming, 0, len(s.liveOrder)),
		Status:     s.status,
		Baseline:   s.baseline,
	}
	for i, row := range s.rows {
		st.PitRows[i] = row.Items()
	}
	for _, id := range s.kartOrder {
		k := *s.karts[id]
		k.LapTimes = append([]float64{}, k.LapTimes...)
		k.Score = copyFloat(k.Score)
		k.ManualScore = copyFloat(k.ManualScore)
		k.Band = bandOf(&k)
		st.Karts = append(st.Karts, k)
	}
	for _, num := range s.teamOrder {
		t := *s.teams[num]
		t.Stints = make([]model.Stint, len(s.teams[num].Stints))
		for i, stint := range s.teams[num].Stints {
			t.Stints[i] = model.Stint{KartID: stint.KartID, LapTimes: append([]float64{}, stint.LapTimes...)}
		}
		st.Teams = append(st.Teams, t)
	}
	for _, key := range s.liveOrder {
		st.LiveTiming = append(st.LiveTiming, *s.live[key])
	}
	sort.SliceStable(st.LiveTiming, func(i, j int) bool {
		pi, pj := st.LiveTiming[i].Position, st.LiveTiming[j].Position
		if pi == 0 || pj == 0 {
			return pi != 0 && pj == 0
		}
		return pi < pj
	})
	return st
}

func (s *Session) kart(id string) (*model.Kart, error) {
	k, ok := s.karts[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKart, "kart %q", id)
	}
	return k, nil
}

func (s *Session) newKart(label string) *model.Kart {
	k := &model.Kart{ID: s.opts.NewKartID(), Label: label, LapTimes: []float64{}}
	s.karts[k.ID] = k
	s.kartOrder = append(s.kartOrder, k.ID)
	return k
}

// RegisterKart adds a kart with a known id, e.g. a transponder code. It is a
// no-op for an id that already exists.
func (s *Session) RegisterKart(id, label string) error {
	if id == "" {
		return errors.Wrap(ErrUnknownKart, "empty kart id")
	}
	_, _, err := s.update(func() ([]model.Event, error) {
		if _, ok := s.karts[id]; ok {
			return nil, nil
		}
		s.karts[id] = &model.Kart{ID: id, Label: label, LapTimes: []float64{}}
		s.kartOrder = append(s.kartOrder, id)
		return nil, nil
	})
	return err
}

func (s *Session) team(number string) *model.Team {
	t, ok := s.teams[number]
	if !ok {
		t = &model.Team{Number: number, Stints: []model.Stint{}}
		s.teams[number] = t
		s.teamOrder = append(s.teamOrder, number)
	}
	return t
}

func bandOf(k *model.Kart) string {
	if k.Manual && k.ManualColor != "" {
		return k.ManualColor
	}
	return scoring.Band(k.Score)
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func appendCapped(laps []float64, lap float64, max int) []float64 {
	laps = append(laps, lap)
	if len(laps) > max {
		laps = append([]float64{}, laps[len(laps)-max:]...)
	}
	return laps
}
