package mines

import (
	"fmt"
	"strings"
)

const (
	layoutMine = '*'
	layoutSafe = '.'
)

// ParseLayout builds a seeded board from rows of '*' (mine) and '.' (safe
// cell), one row per line. Every cell starts closed.
func ParseLayout(layout string) (*Board, error) {
	rows := strings.Fields(layout)
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty layout", ErrInvalidConfiguration)
	}

	params := GameParams{Width: len(rows[0]), Height: len(rows)}
	var mines []int
	for y, row := range rows {
		if len(row) != params.Width {
			return nil, fmt.Errorf(
				"%w: row %d is %d cells wide, want %d",
				ErrInvalidConfiguration, y, len(row), params.Width,
			)
		}
		for x, ch := range []byte(row) {
			switch ch {
			case layoutMine:
				mines = append(mines, y*params.Width+x)
			case layoutSafe:
			default:
				return nil, fmt.Errorf(
					"%w: unexpected %q at %d:%d", ErrInvalidConfiguration, ch, x, y,
				)
			}
		}
	}
	params.MineCount = len(mines)

	b, err := NewGame(params, nil)
	if err != nil {
		return nil, err
	}
	b.plant(mines)
	return b, nil
}

// Layout is the inverse of [ParseLayout]. It reveals where the mines are, so
// it is meant for tests and debugging only.
func (b *Board) Layout() string {
	var sb strings.Builder
	for i, c := range b.Cells {
		if c.Mine {
			sb.WriteByte(layoutMine)
		} else {
			sb.WriteByte(layoutSafe)
		}
		if (i+1)%b.Width == 0 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
