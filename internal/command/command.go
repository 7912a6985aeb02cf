// Package command implements the line-based move language shared by the
// batch endpoint, the websocket connection and the terminal game:
//
//	o x y // open (reveal) the cell at x:y
//	f x y // flag or unflag the cell at x:y
//	c x y // chord the cell at x:y
//	r     // forfeit, revealing the whole board
//	g     // do nothing, used to fetch the current state
package command

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/vancomm/minefield/internal/mines"
)

type Op byte

const (
	Get     Op = 'g'
	Open    Op = 'o'
	Flag    Op = 'f'
	Chord   Op = 'c'
	Forfeit Op = 'r'
)

// Maps known commands to number of arguments
var commandNargs = map[Op]int{
	Get:     0,
	Open:    2,
	Flag:    2,
	Chord:   2,
	Forfeit: 0,
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrArgCount       = errors.New("invalid number of arguments")
	ErrArgument       = errors.New("invalid argument")
)

type Command struct {
	Op   Op
	X, Y int
	// Line is the zero-based script line the command was read from.
	Line int
}

func (c Command) String() string {
	if commandNargs[c.Op] == 0 {
		return string(c.Op)
	}
	return fmt.Sprintf("%c %d %d", c.Op, c.X, c.Y)
}

func parseXY(twoStrings []string) (x int, y int, err error) {
	if x, err = strconv.Atoi(twoStrings[0]); err != nil {
		err = fmt.Errorf("%w: first argument must be an int", ErrArgument)
		return
	}
	if y, err = strconv.Atoi(twoStrings[1]); err != nil {
		err = fmt.Errorf("%w: second argument must be an int", ErrArgument)
		return
	}
	return
}

func Parse(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 || len(parts[0]) != 1 {
		return Command{}, ErrUnknownCommand
	}
	op := Op(parts[0][0])
	nargs, ok := commandNargs[op]
	if !ok {
		return Command{}, ErrUnknownCommand
	}
	if nargs != len(parts)-1 {
		return Command{}, ErrArgCount
	}
	cmd := Command{Op: op}
	if nargs == 2 {
		x, y, err := parseXY(parts[1:])
		if err != nil {
			return Command{}, err
		}
		cmd.X, cmd.Y = x, y
	}
	return cmd, nil
}

// Execute applies cmd to b. Coordinates outside the board are reported as
// [mines.ErrOutOfBounds].
func Execute(b *mines.Board, cmd Command) (mines.Result, error) {
	switch cmd.Op {
	case Get:
		return mines.Result{State: b.State()}, nil
	case Open:
		return b.Reveal(cmd.X, cmd.Y)
	case Flag:
		ch, err := b.ToggleFlag(cmd.X, cmd.Y)
		if err != nil {
			return mines.Result{State: b.State()}, err
		}
		return mines.Result{Changed: []mines.CellChange{ch}, State: b.State()}, nil
	case Chord:
		return b.Chord(cmd.X, cmd.Y)
	case Forfeit:
		return b.Forfeit(), nil
	}
	return mines.Result{State: b.State()}, ErrUnknownCommand
}

// LineError points at the failing line of a script.
type LineError struct {
	Line int
	Err  error
}

// [LineError] implements [error]
func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

func byPiece(s string, sep string) iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		i := 0
		found := true
		var piece string
		for found {
			piece, s, found = strings.Cut(s, sep)
			if !yield(i, piece) {
				return
			}
			i += 1
		}
	}
}

// ParseScript parses newline-separated commands, skipping blank lines. No
// command is returned unless all of them parse. Line numbers count blank
// lines too.
func ParseScript(script string) ([]Command, error) {
	var cmds []Command
	for i, line := range byPiece(script, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, err := Parse(line)
		if err != nil {
			return nil, &LineError{Line: i, Err: err}
		}
		cmd.Line = i
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// Run executes cmds in order and stops early once the game is over. The
// changes of every executed command are merged into the returned result.
// A failing command is reported at its [Command.Line].
func Run(b *mines.Board, cmds []Command) (mines.Result, error) {
	res := mines.Result{State: b.State()}
	for _, cmd := range cmds {
		r, err := Execute(b, cmd)
		if err != nil {
			return res, &LineError{Line: cmd.Line, Err: err}
		}
		res.Changed = append(res.Changed, r.Changed...)
		res.State = r.State
		if res.State.Over() {
			break
		}
	}
	return res, nil
}
