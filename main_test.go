package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/caster"
	"kartpitsbot/pkg/config"
	"kartpitsbot/pkg/feed"
	"kartpitsbot/pkg/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("WEBSERVER_ADDRESS", "")
	t.Setenv("FEED_URL", "")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExtractCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timing.html")
	require.NoError(t, os.WriteFile(path, []byte(`<table>
<tr><th>Pos</th><th>No</th><th>Team</th><th>Last lap</th></tr>
<tr><td>1</td><td>12</td><td>Red Devils</td><td>1:11.000</td></tr>
</table>`), 0o644))

	out, err := execute(t, "extract", path)
	require.NoError(t, err)
	require.Contains(t, out, "Red Devils")
	require.Contains(t, out, "01:11.000")

	out, err = execute(t, "extract", "--json", path)
	require.NoError(t, err)
	obs, err := caster.JSONChannelCaster[[]model.Observation]{}.From([]byte(out))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, "12", obs[0].TeamNumber)
	require.InDelta(t, 71.0, obs[0].LapTimeSeconds, 1e-9)

	_, err = execute(t, "extract", "--type", "xml", path)
	require.Error(t, err)
}

func TestScoreCommand(t *testing.T) {
	st := model.State{
		Karts: []model.Kart{{ID: "K1", Label: "slow"}, {ID: "K2", Label: "fast"}},
		Teams: []model.Team{{Number: "7", Stints: []model.Stint{
			{KartID: "K1", LapTimes: []float64{71, 71}},
			{KartID: "K2", LapTimes: []float64{70, 70}},
		}}},
	}
	data, err := caster.JSONChannelCaster[model.State]{Indent: true}.To(st)
	require.NoError(t, err)
	dir := t.TempDir()
	path := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := execute(t, "--config", filepath.Join(dir, "absent.toml"), "score", "--settling-laps", "0", path)
	require.NoError(t, err)
	require.Contains(t, out, "1000")
	require.Contains(t, out, "purple")
}

func TestConfigInitAndValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kartpit.toml")

	out, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	require.Contains(t, out, path)

	_, err = execute(t, "config", "init", "--path", path)
	require.Error(t, err)

	out, err = execute(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	require.Contains(t, out, "Configuration valid")
}

func TestMockFeedIsExtractable(t *testing.T) {
	start := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	now := start
	race := newMockRace(4, time.Second, 3, func() time.Time { return now })
	now = start.Add(3 * time.Second)

	srv := httptest.NewServer(mockHandler(race))
	defer srv.Close()

	for _, path := range []string{"/", "/feed.json"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		obs := feed.Extract(feed.DetectKind(body), body)
		require.Len(t, obs, 4, path)
		for _, o := range obs {
			require.InDelta(t, 71.0, o.LapTimeSeconds, 5, path)
		}
	}
}

func TestMockRaceIsStableWithinALap(t *testing.T) {
	start := time.Date(2026, 5, 1, 14, 0, 0, 0, time.UTC)
	now := start.Add(2500 * time.Millisecond)
	race := newMockRace(3, time.Second, 9, func() time.Time { return now })
	race.start = start

	first := race.Standings()
	now = now.Add(400 * time.Millisecond)
	require.Equal(t, first, race.Standings())
	require.Equal(t, 1, first[0].Position)
	require.Equal(t, 2, first[0].Laps)
}

func TestServeStopsWhenWebServerCannotBind(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.Web.Address = ln.Addr().String()
	cfg.Console.Enabled = false
	cfg.Archive.Path = ""
	cfg.Logging.Level = "error"

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), &cfg, "", false) }()

	select {
	case err := <-done:
		require.Error(t, err)
		require.Contains(t, err.Error(), "webserver")
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running after the web server failed to bind")
	}
}
