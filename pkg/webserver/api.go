package webserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/model"
	"kartpitsbot/pkg/poller"
	"kartpitsbot/pkg/race"
)

type setupRequest struct {
	Rows        int `json:"rows"`
	KartsPerRow int `json:"kartsPerRow"`
}

type pitRequest struct {
	Team string `json:"team"`
}

type kartRequest struct {
	Label string `json:"label"`
}

// manualRequest carries operator input. A missing or null value means the
// operator cancelled; an empty string is an entered empty value.
type manualRequest struct {
	Value *string `json:"value"`
}

type pollRequest struct {
	URL string `json:"url"`
}

type pollResponse struct {
	Observations int         `json:"observations"`
	State        model.State `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps session errors onto HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, race.ErrUnknownRow), errors.Is(err, race.ErrUnknownKart):
		return http.StatusNotFound
	case errors.Is(err, race.ErrEmptyRow):
		return http.StatusConflict
	case errors.Is(err, race.ErrInvalidTeam), errors.Is(err, race.ErrInvalidScore),
		errors.Is(err, race.ErrInvalidColor), errors.Is(err, race.ErrInvalidSetup):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (m *Manager) fail(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		m.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// rowIndex reads the 1-based {row} path variable.
func rowIndex(r *http.Request) int {
	n, err := strconv.Atoi(mux.Vars(r)["row"])
	if err != nil {
		return -1
	}
	return n - 1
}

func (m *Manager) stateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.race.State())
}

func (m *Manager) exportHandler(w http.ResponseWriter, r *http.Request) {
	st := m.race.Export()
	if m.archive != nil {
		if _, err := m.archive.Save(st); err != nil {
			m.logger.Warn("export not archived", "error", err)
		}
	}
	payload, err := caster.JSONChannelCaster[model.State]{Indent: true}.To(st)
	if err != nil {
		m.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="kart-session-`+st.ExportedAt.UTC().Format("20060102-150405")+`.json"`)
	_, _ = w.Write(payload)
}

func (m *Manager) exportsHandler(w http.ResponseWriter, r *http.Request) {
	if m.archive == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "export archive disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := m.archive.List(limit)
	if err != nil {
		m.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (m *Manager) setupHandler(w http.ResponseWriter, r *http.Request) {
	var req setupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := m.race.SetupRows(req.Rows, req.KartsPerRow); err != nil {
		m.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m.race.State())
}

func (m *Manager) pitHandler(w http.ResponseWriter, r *http.Request) {
	var req pitRequest
	if !decode(w, r, &req) {
		return
	}
	ev, err := m.race.PitEntry(rowIndex(r), req.Team)
	if err != nil {
		m.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (m *Manager) addKartHandler(w http.ResponseWriter, r *http.Request) {
	var req kartRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	id, err := m.race.AddKart(rowIndex(r), req.Label)
	if err != nil {
		m.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (m *Manager) removeKartHandler(w http.ResponseWriter, r *http.Request) {
	if err := m.race.RemoveKart(mux.Vars(r)["id"]); err != nil {
		m.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (m *Manager) manualHandler(set func(string, race.Input) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualRequest
		if !decode(w, r, &req) {
			return
		}
		in := race.Cancelled()
		if req.Value != nil {
			in = race.Entered(*req.Value)
		}
		id := mux.Vars(r)["id"]
		if err := set(id, in); err != nil {
			if errors.Is(err, race.ErrCancelled) {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			m.fail(w, err)
			return
		}
		k, _ := m.race.State().KartByID(id)
		writeJSON(w, http.StatusOK, k)
	}
}

func (m *Manager) clearOverrideHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := m.race.ClearOverride(id); err != nil {
		m.fail(w, err)
		return
	}
	k, _ := m.race.State().KartByID(id)
	writeJSON(w, http.StatusOK, k)
}

func (m *Manager) pollHandler(w http.ResponseWriter, r *http.Request) {
	if m.poller == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "poller not running"})
		return
	}
	var req pollRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if req.URL != "" {
		m.poller.SetURL(req.URL)
	}
	n, err := m.poller.PollOnce(r.Context())
	if err != nil && !errors.Is(err, poller.ErrNoData) {
		status := http.StatusBadGateway
		if errors.Is(err, poller.ErrNoURL) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, pollResponse{Observations: n, State: m.race.State()})
}

func (m *Manager) simulateHandler(w http.ResponseWriter, r *http.Request) {
	obs := race.DemoObservations()
	st := m.race.Ingest(obs)
	m.logger.Info("simulated feed ingested", "observations", len(obs))
	writeJSON(w, http.StatusOK, pollResponse{Observations: len(obs), State: st})
}

func (m *Manager) proxyFetchHandler(w http.ResponseWriter, r *http.Request) {
	var req pollRequest
	if !decode(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "url is required"})
		return
	}
	res := m.fetcher.Fetch(r.Context(), req.URL)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, res)
}
