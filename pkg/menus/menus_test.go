package menus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyboard(t *testing.T) {
	m := NewMenu("Pit", []string{"/rows", "/board"}, []string{"/help"})
	kb := m.Keyboard()
	require.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 2)
	require.Equal(t, "/board", kb.Keyboard[0][1].Text)
	require.Equal(t, "/help", kb.Keyboard[1][0].Text)
}
