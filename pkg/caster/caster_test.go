package caster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"kartpitsbot/pkg/model"
)

func TestJSONCasterIndentedExport(t *testing.T) {
	c := JSONChannelCaster[model.State]{Indent: true}
	s := model.State{PitRows: [][]string{{"K1", "K2"}}}

	data, err := c.To(s)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "\n  \"pitRows\""))

	back, err := c.From(data)
	require.NoError(t, err)
	require.Equal(t, s.PitRows, back.PitRows)
}

func TestJSONCasterRejectsGarbage(t *testing.T) {
	_, err := JSONChannelCaster[model.State]{}.From([]byte("{not json"))
	require.Error(t, err)
}
