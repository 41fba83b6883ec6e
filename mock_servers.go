package main

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/helper"
	"kartpitsbot/pkg/logging"
)

const mockStintLaps = 12

var mockTeams = []string{"Red Devils", "Karters", "Apex Hunters", "Slipstream", "Late Brakers", "Box Box"}

func newMockFeedCommand() *cobra.Command {
	var ports []int
	var lapEvery time.Duration
	var seed int64

	cmd := &cobra.Command{
		Use:         "mock-feed",
		Short:       "Serve a simulated live timing feed for local testing",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(ports) == 0 {
				return errors.New("at least one port is required")
			}
			logger, err := logging.New(logging.Options{})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return CreateServers(ctx, ports, newMockRace(len(mockTeams), lapEvery, seed, time.Now), logger)
		},
	}

	cmd.Flags().IntSliceVarP(&ports, "port", "p", []int{8000}, "Ports to serve the feed on")
	cmd.Flags().DurationVar(&lapEvery, "lap-every", 5*time.Second, "Wall time between simulated laps")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed for kart pace")
	return cmd
}

// CreateServers serves the same simulated race on every port until ctx is
// done.
func CreateServers(ctx context.Context, ports []int, race *mockRace, logger *slog.Logger) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(ports))
	for _, port := range ports {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mockHandler(race),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("mock feed listening", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
	}
	wg.Wait()
	close(errCh)
	return <-errCh
}

func mockHandler(race *mockRace) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := mockPage.Execute(w, race.Standings()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}).Methods(http.MethodGet)
	r.HandleFunc("/feed.json", func(w http.ResponseWriter, r *http.Request) {
		data, err := caster.JSONChannelCaster[mockFeed]{}.To(mockFeed{Standings: race.Standings()})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	}).Methods(http.MethodGet)
	return r
}

var mockPage = template.Must(template.New("feed").Funcs(template.FuncMap{"lap": helper.LapTime}).Parse(`<!DOCTYPE html>
<html><head><title>Live timing</title><meta http-equiv="refresh" content="5"></head>
<body><table>
<tr><th>Pos</th><th>No</th><th>Team</th><th>Last lap</th><th>Best lap</th></tr>
{{range .}}<tr><td>{{.Position}}</td><td>{{.Number}}</td><td>{{.Name}}</td><td>{{if .LastLap}}{{lap .LastLap}}{{end}}</td><td>{{if .BestLap}}{{lap .BestLap}}{{end}}</td></tr>
{{end}}</table></body></html>`))

type mockFeed struct {
	Standings []mockStanding `json:"standings"`
}

type mockStanding struct {
	Position int     `json:"position"`
	Number   string  `json:"number"`
	Name     string  `json:"teamName"`
	Laps     int     `json:"laps"`
	LastLap  float64 `json:"lastLap"`
	BestLap  float64 `json:"bestLap"`
}

// mockRace derives every lap from the seed, the team and the lap index, so
// repeated requests within a lap return the same standings.
type mockRace struct {
	teams    int
	lapEvery time.Duration
	seed     int64
	start    time.Time
	now      func() time.Time
}

func newMockRace(teams int, lapEvery time.Duration, seed int64, now func() time.Time) *mockRace {
	if lapEvery <= 0 {
		lapEvery = time.Second
	}
	return &mockRace{teams: teams, lapEvery: lapEvery, seed: seed, start: now(), now: now}
}

// lap is the time of a team's lap. Each stint runs on a kart with its own
// pace; the first laps of a stint are slower.
func (m *mockRace) lap(team, index int) float64 {
	stint := index / mockStintLaps
	kart := rand.New(rand.NewSource(m.seed*7919 + int64(team)*131 + int64(stint)))
	pace := 70 + float64(team)*0.15 + kart.Float64()*1.5
	noise := rand.New(rand.NewSource(m.seed*104729 + int64(team)*1009 + int64(index)))
	lap := pace + noise.NormFloat64()*0.2
	if index%mockStintLaps == 0 {
		lap += 20
	}
	return float64(int(lap*1000)) / 1000
}

// Standings returns the current order, most laps first.
func (m *mockRace) Standings() []mockStanding {
	laps := int(m.now().Sub(m.start) / m.lapEvery)
	out := make([]mockStanding, 0, m.teams)
	for t := 0; t < m.teams; t++ {
		s := mockStanding{Number: fmt.Sprintf("%d", t+1), Name: mockTeams[t%len(mockTeams)], Laps: laps}
		for i := 0; i < laps; i++ {
			l := m.lap(t, i)
			s.LastLap = l
			if s.BestLap == 0 || l < s.BestLap {
				s.BestLap = l
			}
		}
		out = append(out, s)
	}
	// every team completes the same number of laps, faster best laps lead
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && better(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

func better(a, b mockStanding) bool {
	if a.BestLap == 0 || b.BestLap == 0 {
		return a.BestLap != 0
	}
	return a.BestLap < b.BestLap
}
