package mines

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"iter"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Board is a single game. Cells are stored row by row, the cell at x:y lives
// at index y*Width+x.
//
// A Board is not safe for concurrent use.
type Board struct {
	GameParams
	Seeded bool
	Cells  []Cell

	rnd *rand.Rand
}

// NewGame allocates a closed, unseeded board. Mines are placed by the first
// [Board.Reveal] so that the first revealed cell is always safe. r is used for
// mine placement; if it is nil the package-level generator is used.
func NewGame(params GameParams, r *rand.Rand) (*Board, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	b := &Board{
		GameParams: params,
		Cells:      make([]Cell, params.Width*params.Height),
		rnd:        r,
	}
	return b, nil
}

func DecodeBoard(buf []byte) (*Board, error) {
	var b Board
	if err := gob.NewDecoder(bytes.NewBuffer(buf)).Decode(&b); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(b.Cells) != b.Width*b.Height {
		return nil, fmt.Errorf(
			"%w: %d cells on a %dx%d board",
			ErrInvalidConfiguration, len(b.Cells), b.Width, b.Height,
		)
	}
	return &b, nil
}

func (b Board) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SetRand replaces the generator used for mine placement, e.g. after the
// board has been decoded.
func (b *Board) SetRand(r *rand.Rand) {
	b.rnd = r
}

func (b *Board) Clone() *Board {
	c := *b
	c.Cells = make([]Cell, len(b.Cells))
	copy(c.Cells, b.Cells)
	return &c
}

func (b *Board) index(x, y int) (int, error) {
	if !b.PointInBounds(x, y) {
		return 0, fmt.Errorf(
			"%w: %d:%d on a %dx%d board", ErrOutOfBounds, x, y, b.Width, b.Height,
		)
	}
	return y*b.Width + x, nil
}

func (b *Board) Cell(x, y int) (Cell, error) {
	i, err := b.index(x, y)
	if err != nil {
		return Cell{}, err
	}
	return b.Cells[i], nil
}

// neighbours yields the indices of the up to 8 cells touching cell i.
func (b *Board) neighbours(i int) iter.Seq[int] {
	return func(yield func(int) bool) {
		x, y := i%b.Width, i/b.Width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				xx, yy := x+dx, y+dy
				if (dx == 0 && dy == 0) || !b.PointInBounds(xx, yy) {
					continue
				}
				if !yield(yy*b.Width + xx) {
					return
				}
			}
		}
	}
}

func (b *Board) intN(n int) int {
	if b.rnd != nil {
		return b.rnd.IntN(n)
	}
	return rand.IntN(n)
}

// seed places MineCount mines on any cell but exclude (pass -1 to allow all
// of them) and computes the neighbour counts.
func (b *Board) seed(exclude int) {
	candidates := make([]int, 0, len(b.Cells))
	for i := range b.Cells {
		if i != exclude {
			candidates = append(candidates, i)
		}
	}

	/*
	 * Pick MineCount off the list at random: swap each pick with the
	 * last remaining candidate and shrink the list.
	 */
	picked := make([]int, 0, b.MineCount)
	k := len(candidates)
	for range b.MineCount {
		j := b.intN(k)
		picked = append(picked, candidates[j])
		k--
		candidates[j] = candidates[k]
	}

	b.plant(picked)
	Log.WithFields(logrus.Fields{
		"params":  b.Seed(),
		"exclude": exclude,
	}).Debug("board seeded")
}

func (b *Board) plant(mines []int) {
	for _, i := range mines {
		b.Cells[i].Mine = true
	}
	for i := range b.Cells {
		if b.Cells[i].Mine {
			continue
		}
		n := 0
		for j := range b.neighbours(i) {
			if b.Cells[j].Mine {
				n++
			}
		}
		b.Cells[i].Count = n
	}
	b.Seeded = true
}

func (b *Board) Flags() (count int) {
	for _, c := range b.Cells {
		if c.Visibility == Flagged {
			count++
		}
	}
	return
}

// RemainingMineEstimate is the mine count minus the number of flags. It goes
// negative when the player places more flags than there are mines.
func (b *Board) RemainingMineEstimate() int {
	return b.MineCount - b.Flags()
}

func (b *Board) change(i int) CellChange {
	c := b.Cells[i]
	ch := CellChange{X: i % b.Width, Y: i / b.Width, Visibility: c.Visibility}
	if c.Visibility == Open {
		ch.Mine = c.Mine
		if !c.Mine {
			ch.Count = c.Count
		}
	}
	return ch
}
