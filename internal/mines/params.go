package mines

import (
	"fmt"
	"strings"
)

type GameParams struct {
	Width, Height, MineCount int
}

func (p GameParams) Unpack() (w int, h int, mc int) {
	return p.Width, p.Height, p.MineCount
}

// Validate reports whether a board with these params can be played: it must
// have at least one cell and leave at least one of them free of mines.
func (p GameParams) Validate() error {
	switch {
	case p.Width < 1 || p.Height < 1:
		return fmt.Errorf(
			"%w: board must be at least 1x1, got %dx%d",
			ErrInvalidConfiguration, p.Width, p.Height,
		)
	case p.MineCount < 0:
		return fmt.Errorf(
			"%w: negative mine count %d", ErrInvalidConfiguration, p.MineCount,
		)
	case p.MineCount >= p.Width*p.Height:
		return fmt.Errorf(
			"%w: %d mines leave no safe cell on a %dx%d board",
			ErrInvalidConfiguration, p.MineCount, p.Width, p.Height,
		)
	}
	return nil
}

func (p GameParams) Seed() string {
	return fmt.Sprintf("%d:%d:%d", p.Width, p.Height, p.MineCount)
}

func ParseSeed(seed string) (*GameParams, error) {
	p := &GameParams{}
	sseed := strings.ReplaceAll(seed, ":", " ")
	n, err := fmt.Sscanf(sseed, "%d %d %d", &p.Width, &p.Height, &p.MineCount)
	if n != 3 || err != nil {
		return nil, fmt.Errorf("%w: malformed seed %q", ErrInvalidConfiguration, seed)
	}
	return p, nil
}

func (p GameParams) PointInBounds(x, y int) bool {
	return 0 <= x && x < p.Width && 0 <= y && y < p.Height
}
