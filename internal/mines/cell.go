package mines

import "fmt"

type Visibility uint8

const (
	Closed Visibility = iota
	Open
	Flagged
)

var visibilityNames = [...]string{
	Closed:  "closed",
	Open:    "open",
	Flagged: "flagged",
}

func (v Visibility) String() string {
	if int(v) < len(visibilityNames) {
		return visibilityNames[v]
	}
	return fmt.Sprintf("Visibility(%d)", v)
}

// [Visibility] implements [encoding.TextMarshaler]
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Visibility) UnmarshalText(text []byte) error {
	for i, name := range visibilityNames {
		if name == string(text) {
			*v = Visibility(i)
			return nil
		}
	}
	return fmt.Errorf("unknown visibility %q", text)
}

// Cell is one grid position. Mine and Count are fixed once the board is
// seeded; Count is only meaningful for safe cells of a seeded board.
type Cell struct {
	Mine       bool
	Count      int
	Visibility Visibility
}

// CellChange describes a cell after an operation, as seen by the player:
// Mine and Count are only filled in for open cells.
type CellChange struct {
	X          int        `json:"x"`
	Y          int        `json:"y"`
	Visibility Visibility `json:"visibility"`
	Mine       bool       `json:"mine,omitempty"`
	Count      int        `json:"count"`
}
