package mines

import (
	"fmt"
	"strconv"
	"strings"
)

type CellState int8

const (
	Unknown CellState = -2
	Flag    CellState = -1
	Mine    CellState = 64
	// 0-8 for an open cell with the given number of mined neighbours
)

func (s CellState) String() string {
	switch s {
	case Unknown:
		return "#"
	case Flag:
		return "F"
	case Mine:
		return "*"
	case 0:
		return "."
	case 1, 2, 3, 4, 5, 6, 7, 8:
		return strconv.Itoa(int(s))
	default:
		return "!"
	}
}

// Grid is what the player sees of a board, row by row.
type Grid []CellState

func (g Grid) String(width int) string {
	if width <= 0 {
		return ""
	}
	var b strings.Builder
	for y := range len(g) / width {
		for x := range width {
			if x > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprint(&b, g[y*width+x].String())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (b *Board) View() Grid {
	g := make(Grid, len(b.Cells))
	for i, c := range b.Cells {
		switch {
		case c.Visibility == Flagged:
			g[i] = Flag
		case c.Visibility == Closed:
			g[i] = Unknown
		case c.Mine:
			g[i] = Mine
		default:
			g[i] = CellState(c.Count)
		}
	}
	return g
}
