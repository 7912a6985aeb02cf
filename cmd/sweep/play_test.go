package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vancomm/minefield/internal/mines"
)

func TestPlayWin(t *testing.T) {
	b, err := mines.ParseLayout("*..\n...\n...")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, play(b, strings.NewReader("f 0 0\no 9 9\n\no 2 2\no 0 0\n"), &out))

	text := out.String()
	assert.Contains(t, text, "# # #\n# # #\n# # #\nstate: in_progress, mines left: 1\n")
	assert.Contains(t, text, "o 9 9: point out of bounds")
	assert.Contains(t, text, "F 1 .\n1 1 .\n. . .\nstate: won, mines left: 0\n")
	assert.True(t, strings.HasSuffix(text, "you won\n"))
	assert.NotContains(t, text, "state: lost", "moves after the game ends are not read")
}

func TestPlayLoss(t *testing.T) {
	b, err := mines.ParseLayout("*..\n...\n...")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, play(b, strings.NewReader("o 0 0\n"), &out))
	assert.Contains(t, out.String(), "* 1 .\n1 1 .\n. . .\nstate: lost")
	assert.True(t, strings.HasSuffix(out.String(), "you lost\n"))
}

func TestPlayCommand(t *testing.T) {
	layout := filepath.Join(t.TempDir(), "board.txt")
	require.NoError(t, os.WriteFile(layout, []byte("..*\n...\n...\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetArgs([]string{"play", "--layout", layout})
	rootCmd.SetIn(strings.NewReader("o 0 0\n"))
	rootCmd.SetOut(&out)
	t.Cleanup(func() { layoutFile = "" })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "state: won, mines left: 1")
}

func TestNewBoardFromSeed(t *testing.T) {
	seed = "4:3:2"
	t.Cleanup(func() { seed = "" })

	b, err := newBoard()
	require.NoError(t, err)
	assert.Equal(t, mines.GameParams{Width: 4, Height: 3, MineCount: 2}, b.GameParams)
	assert.False(t, b.Seeded)

	seed = "4x3"
	_, err = newBoard()
	assert.ErrorIs(t, err, mines.ErrInvalidConfiguration)
}
