package webserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/archive"
	"kartpitsbot/pkg/fetcher"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/pubsub"
	"kartpitsbot/pkg/race"
)

const DefaultAddress = ":8080"

// Race is the session surface the API drives.
type Race interface {
	State() model.State
	Export() model.State
	States() *pubsub.PubSub[model.State]
	Events() *pubsub.PubSub[model.Event]
	SetupRows(rows, perRow int) error
	PitEntry(rowIndex int, teamNumber string) (model.Event, error)
	AddKart(rowIndex int, label string) (string, error)
	RemoveKart(id string) error
	SetManualScore(kartID string, in race.Input) error
	SetManualColor(kartID string, in race.Input) error
	SetLabel(kartID string, in race.Input) error
	ClearOverride(kartID string) error
	Ingest(obs []model.Observation) model.State
}

type Poller interface {
	PollOnce(ctx context.Context) (int, error)
	URL() string
	SetURL(url string)
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) fetcher.Result
}

// Archive is optional; without one exports are only downloaded.
type Archive interface {
	Save(state model.State) (archive.Entry, error)
	List(limit int) ([]archive.Entry, error)
}

type Options struct {
	Address string
	Race    Race
	Poller  Poller
	Fetcher Fetcher
	Archive Archive
	Logger  *slog.Logger
}

type Manager struct {
	r       *mux.Router
	addr    string
	race    Race
	poller  Poller
	fetcher Fetcher
	archive Archive
	logger  *slog.Logger
}

func NewManager(opts Options) *Manager {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	m := &Manager{
		r:       mux.NewRouter(),
		addr:    opts.Address,
		race:    opts.Race,
		poller:  opts.Poller,
		fetcher: opts.Fetcher,
		archive: opts.Archive,
		logger:  opts.Logger,
	}
	m.addHandlers()
	return m
}

// Handler exposes the router, mainly for tests.
func (m *Manager) Handler() http.Handler {
	return m.r
}

func (m *Manager) addHandlers() {
	m.r.HandleFunc("/", m.dashboardHandler).Methods(http.MethodGet)
	m.r.HandleFunc("/ws", m.websocketHandler)
	m.r.HandleFunc("/board.svg", m.boardSVGHandler).Methods(http.MethodGet)
	m.r.HandleFunc("/board.png", m.boardPNGHandler).Methods(http.MethodGet)
	m.r.HandleFunc("/proxy-fetch", m.proxyFetchHandler).Methods(http.MethodPost)
	m.r.HandleFunc("/simulate", m.simulateHandler).Methods(http.MethodPost)

	api := m.r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/state", m.stateHandler).Methods(http.MethodGet)
	api.HandleFunc("/export", m.exportHandler).Methods(http.MethodGet)
	api.HandleFunc("/exports", m.exportsHandler).Methods(http.MethodGet)
	api.HandleFunc("/setup", m.setupHandler).Methods(http.MethodPost)
	api.HandleFunc("/poll", m.pollHandler).Methods(http.MethodPost)
	api.HandleFunc("/rows/{row:[0-9]+}/pit", m.pitHandler).Methods(http.MethodPost)
	api.HandleFunc("/rows/{row:[0-9]+}/karts", m.addKartHandler).Methods(http.MethodPost)
	api.HandleFunc("/karts/{id}", m.removeKartHandler).Methods(http.MethodDelete)
	api.HandleFunc("/karts/{id}/score", m.manualHandler(m.race.SetManualScore)).Methods(http.MethodPut)
	api.HandleFunc("/karts/{id}/color", m.manualHandler(m.race.SetManualColor)).Methods(http.MethodPut)
	api.HandleFunc("/karts/{id}/label", m.manualHandler(m.race.SetLabel)).Methods(http.MethodPut)
	api.HandleFunc("/karts/{id}/override", m.clearOverrideHandler).Methods(http.MethodDelete)
}

// Serve listens until ctx is done, then shuts down gracefully.
func (m *Manager) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         m.addr,
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      m.r,
	}

	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("webserver listening", "address", m.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "webserver")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.logger.Info("webserver shutting down")
	return errors.Wrap(srv.Shutdown(shutdownCtx), "webserver shutdown")
}
