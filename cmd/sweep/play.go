package main

import (
	"bufio"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vancomm/minefield/internal/command"
	"github.com/vancomm/minefield/internal/mines"
)

var (
	width      int
	height     int
	mineCount  int
	seed       string
	layoutFile string
	randSeed   uint64
)

func init() {
	playCmd := &cobra.Command{
		Use:   "play",
		Short: "Start a game and read moves from stdin",
		Long: `Start a game and read one move per line from stdin:

  o x y   open the cell at x:y
  f x y   flag or unflag the cell at x:y
  c x y   chord the cell at x:y
  r       give up and reveal the board
  g       print the board again

Examples:
  sweep play
  sweep play --seed 16:16:40
  sweep play --layout board.txt < moves.txt`,
		RunE: runPlay,
	}

	playCmd.Flags().IntVar(&width, "width", 9, "board width")
	playCmd.Flags().IntVar(&height, "height", 9, "board height")
	playCmd.Flags().IntVarP(&mineCount, "mines", "m", 10, "number of mines")
	playCmd.Flags().StringVarP(&seed, "seed", "s", "", "board params as W:H:M, overrides the size flags")
	playCmd.Flags().StringVarP(&layoutFile, "layout", "l", "", "file with a fixed layout of '*' and '.' rows")
	playCmd.Flags().Uint64Var(&randSeed, "rand", 0, "seed for mine placement, 0 picks one at random")

	rootCmd.AddCommand(playCmd)
}

func newBoard() (*mines.Board, error) {
	if layoutFile != "" {
		layout, err := os.ReadFile(layoutFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read layout: %w", err)
		}
		return mines.ParseLayout(string(layout))
	}

	params := mines.GameParams{Width: width, Height: height, MineCount: mineCount}
	if seed != "" {
		p, err := mines.ParseSeed(seed)
		if err != nil {
			return nil, err
		}
		params = *p
	}

	var r *rand.Rand
	if randSeed != 0 {
		r = rand.New(rand.NewPCG(randSeed, randSeed))
	}
	return mines.NewGame(params, r)
}

func runPlay(cmd *cobra.Command, args []string) error {
	b, err := newBoard()
	if err != nil {
		return err
	}
	return play(b, cmd.InOrStdin(), cmd.OutOrStdout())
}

func printBoard(out io.Writer, b *mines.Board) {
	fmt.Fprint(out, b.View().String(b.Width))
	fmt.Fprintf(out, "state: %s, mines left: %d\n", b.State(), b.RemainingMineEstimate())
}

// play runs moves from in until the game is over or in is exhausted. Bad moves
// are reported and skipped.
func play(b *mines.Board, in io.Reader, out io.Writer) error {
	printBoard(out, b)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, err := command.Parse(line)
		if err == nil {
			_, err = command.Execute(b, cmd)
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %s\n", line, err)
			continue
		}
		printBoard(out, b)
		if b.State().Over() {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch b.State() {
	case mines.Won:
		fmt.Fprintln(out, "you won")
	case mines.Lost:
		fmt.Fprintln(out, "you lost")
	}
	return nil
}
