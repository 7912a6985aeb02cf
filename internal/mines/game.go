package mines

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type GameState uint8

const (
	InProgress GameState = iota
	Won
	Lost
)

var gameStateNames = [...]string{
	InProgress: "in_progress",
	Won:        "won",
	Lost:       "lost",
}

func (s GameState) String() string {
	if int(s) < len(gameStateNames) {
		return gameStateNames[s]
	}
	return fmt.Sprintf("GameState(%d)", s)
}

// [GameState] implements [encoding.TextMarshaler]
func (s GameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *GameState) UnmarshalText(text []byte) error {
	for i, name := range gameStateNames {
		if name == string(text) {
			*s = GameState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", text)
}

func (s GameState) Over() bool {
	return s != InProgress
}

// Result lists the cells whose visibility changed during an operation and
// the state of the game after it.
type Result struct {
	Changed []CellChange `json:"changed"`
	State   GameState    `json:"state"`
}

// State is derived from the cells: the game is lost once a mine is open and
// won once every safe cell of a seeded board is open.
func (b *Board) State() GameState {
	covered := 0
	for _, c := range b.Cells {
		if c.Mine && c.Visibility == Open {
			return Lost
		}
		if !c.Mine && c.Visibility != Open {
			covered++
		}
	}
	if b.Seeded && covered == 0 {
		return Won
	}
	return InProgress
}

// Reveal opens the cell at x:y. The first reveal of a game places the mines.
// Revealing a flagged or open cell, or playing on after the game is over, does
// nothing. Hitting a mine opens the whole board.
func (b *Board) Reveal(x, y int) (Result, error) {
	i, err := b.index(x, y)
	if err != nil {
		return Result{State: b.State()}, err
	}
	if state := b.State(); state.Over() {
		return Result{State: state}, nil
	}
	if b.Cells[i].Visibility != Closed {
		return Result{State: InProgress}, nil
	}

	if !b.Seeded {
		b.seed(i)
	}

	res := Result{Changed: b.open(i, nil)}
	res.State = b.State()
	b.logOutcome(res.State, x, y)
	return res, nil
}

// Chord reveals every closed neighbour of an open cell once the player has
// flagged as many neighbours as the cell counts mines.
func (b *Board) Chord(x, y int) (Result, error) {
	i, err := b.index(x, y)
	if err != nil {
		return Result{State: b.State()}, err
	}
	state := b.State()
	c := b.Cells[i]
	if state.Over() || c.Visibility != Open || c.Mine {
		return Result{State: state}, nil
	}

	flags := 0
	closed := make([]int, 0, 8)
	for j := range b.neighbours(i) {
		switch b.Cells[j].Visibility {
		case Flagged:
			flags++
		case Closed:
			closed = append(closed, j)
		}
	}
	if flags != c.Count {
		return Result{State: state}, nil
	}

	var changed []CellChange
	for _, j := range closed {
		if b.Cells[j].Visibility != Closed {
			continue // opened by an earlier flood fill
		}
		changed = b.open(j, changed)
		if b.State().Over() {
			break
		}
	}
	res := Result{Changed: changed, State: b.State()}
	b.logOutcome(res.State, x, y)
	return res, nil
}

// ToggleFlag flags a closed cell or unflags a flagged one. Open cells and
// finished games are left untouched. The returned change carries the cell's
// visibility after the call.
func (b *Board) ToggleFlag(x, y int) (CellChange, error) {
	i, err := b.index(x, y)
	if err != nil {
		return CellChange{X: x, Y: y}, err
	}
	if !b.State().Over() {
		c := &b.Cells[i]
		switch c.Visibility {
		case Closed:
			c.Visibility = Flagged
		case Flagged:
			c.Visibility = Closed
		}
	}
	return b.change(i), nil
}

// Forfeit gives up an unfinished game, opening every cell.
func (b *Board) Forfeit() Result {
	if state := b.State(); state.Over() {
		return Result{State: state}
	}
	if !b.Seeded {
		b.seed(-1)
	}
	var changed []CellChange
	for i := range b.Cells {
		if b.Cells[i].Visibility != Open {
			b.Cells[i].Visibility = Open
			changed = append(changed, b.change(i))
		}
	}
	Log.WithField("params", b.Seed()).Debug("game forfeited")
	return Result{Changed: changed, State: b.State()}
}

// open opens cell i of a seeded board and appends every cell it changes.
// A mine opens the whole board; a zero cell floods through its neighbours.
func (b *Board) open(i int, changed []CellChange) []CellChange {
	if b.Cells[i].Mine {
		for j := range b.Cells {
			if b.Cells[j].Visibility != Open {
				b.Cells[j].Visibility = Open
				changed = append(changed, b.change(j))
			}
		}
		return changed
	}

	b.Cells[i].Visibility = Open
	changed = append(changed, b.change(i))

	/*
	 * Every cell is pushed at most once, right after it is opened, so the
	 * open visibility doubles as the visited mark.
	 */
	stack := []int{i}
	for len(stack) > 0 {
		j := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.Cells[j].Count != 0 {
			continue
		}
		for k := range b.neighbours(j) {
			c := &b.Cells[k]
			if c.Visibility != Closed || c.Mine {
				continue
			}
			c.Visibility = Open
			changed = append(changed, b.change(k))
			stack = append(stack, k)
		}
	}
	return changed
}

func (b *Board) logOutcome(state GameState, x, y int) {
	if !state.Over() {
		return
	}
	Log.WithFields(logrus.Fields{
		"params": b.Seed(),
		"x":      x,
		"y":      y,
		"state":  state,
	}).Debug("game over")
}
