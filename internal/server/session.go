package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vancomm/minefield/internal/command"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/store"
)

type SessionJSON struct {
	ID        string             `json:"id"`
	Grid      mines.Grid         `json:"grid"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	MineCount int                `json:"mine_count"`
	State     mines.GameState    `json:"state"`
	Remaining int                `json:"remaining"`
	Changed   []mines.CellChange `json:"changed"`
	StartedAt int64              `json:"started_at"`
	EndedAt   *int64             `json:"ended_at,omitempty"`
}

func newSessionJSON(s *store.Session, changed []mines.CellChange) SessionJSON {
	var endedAt *int64
	if s.EndedAt != nil {
		e := s.EndedAt.UnixMilli()
		endedAt = &e
	}
	if changed == nil {
		changed = []mines.CellChange{}
	}
	return SessionJSON{
		ID:        s.ID.String(),
		Grid:      s.Board.View(),
		Width:     s.Board.Width,
		Height:    s.Board.Height,
		MineCount: s.Board.MineCount,
		State:     s.Board.State(),
		Remaining: s.Board.RemainingMineEstimate(),
		Changed:   changed,
		StartedAt: s.StartedAt.UnixMilli(),
		EndedAt:   endedAt,
	}
}

type ErrorJSON struct {
	Error string `json:"error"`
	Line  *int   `json:"line,omitempty"`
}

func sendJSON(w http.ResponseWriter, v any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return 0, err
	}
	w.Header().Set("Content-Type", "application/json")
	return w.Write(payload)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, mines.ErrOutOfBounds),
		errors.Is(err, mines.ErrInvalidConfiguration),
		errors.Is(err, command.ErrUnknownCommand),
		errors.Is(err, command.ErrArgCount),
		errors.Is(err, command.ErrArgument):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func newErrorJSON(err error) ErrorJSON {
	payload := ErrorJSON{Error: err.Error()}
	var lineErr *command.LineError
	if errors.As(err, &lineErr) {
		payload.Line = &lineErr.Line
	}
	return payload
}

// sendError replies with the status matching err. Internal errors are logged
// and their message is not exposed.
func sendError(w http.ResponseWriter, status int, err error) {
	payload := newErrorJSON(err)
	if status >= http.StatusInternalServerError {
		Log.Error(err)
		payload = ErrorJSON{Error: http.StatusText(status)}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		Log.Error(err)
	}
}
