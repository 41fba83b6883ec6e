package archive

import (
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "exports.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSaveAndList(t *testing.T) {
	s := openTestStore(t)

	first := model.State{
		Karts:      []model.Kart{{ID: "K1"}, {ID: "K2"}},
		ExportedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	second := model.State{
		Karts:      []model.Kart{{ID: "K1"}},
		Teams:      []model.Team{{Number: "7"}},
		ExportedAt: time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC),
	}

	e1, err := s.Save(first)
	require.NoError(t, err)
	e2, err := s.Save(second)
	require.NoError(t, err)
	require.Greater(t, e2.ID, e1.ID)

	entries, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, e2.ID, entries[0].ID)
	require.Equal(t, 1, entries[0].Karts)
	require.Equal(t, 1, entries[0].Teams)
	require.True(t, second.ExportedAt.Equal(entries[0].ExportedAt))
	require.Equal(t, e1.Bytes, entries[1].Bytes)

	limited, err := s.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestPayloadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	e, err := s.Save(model.State{PitRows: [][]string{{"K1", "K2"}}})
	require.NoError(t, err)

	raw, err := s.Payload(e.ID)
	require.NoError(t, err)
	var st model.State
	require.NoError(t, json.Unmarshal(raw, &st))
	require.Equal(t, [][]string{{"K1", "K2"}}, st.PitRows)

	_, err = s.Payload(e.ID + 100)
	require.ErrorIs(t, err, ErrNotFound)
}
