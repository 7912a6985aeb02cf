package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/command"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/store"
)

const maxBatchBytes = 64 << 10

type NewGameParams struct {
	Width     int `schema:"width"`
	Height    int `schema:"height"`
	MineCount int `schema:"mine_count"`
}

type PosParams struct {
	X int `schema:"x,required"`
	Y int `schema:"y,required"`
}

// operation changes a board and reports what changed.
type operation func(b *mines.Board) (mines.Result, error)

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	defaults := s.config.Game
	gameParams := NewGameParams{
		Width:     defaults.Width,
		Height:    defaults.Height,
		MineCount: defaults.MineCount,
	}
	if err := s.dec.Decode(&gameParams, r.URL.Query()); err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	params := mines.GameParams(gameParams)
	if params.Width > defaults.MaxCells || params.Height > defaults.MaxCells ||
		params.Width*params.Height > defaults.MaxCells {
		sendError(w, http.StatusBadRequest, fmt.Errorf(
			"%w: board may not exceed %d cells",
			mines.ErrInvalidConfiguration, defaults.MaxCells,
		))
		return
	}

	board, err := mines.NewGame(params, s.newRand())
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}

	var playerID *int64
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		Log.Debug("creating session for player ", claims.Username)
		playerID = &claims.PlayerId
		if err := s.cookies.Refresh(w, claims.PlayerId, claims.Username); err != nil {
			Log.Error(err)
		}
	} else {
		Log.Debug("creating anonymous session")
	}

	session := store.NewSession(board, playerID)
	session.StartedAt = s.now()
	if err := s.store.CreateSession(r.Context(), session); err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	Log.WithFields(logrus.Fields{
		"session": session.ID,
		"params":  params.Seed(),
	}).Info("game created")

	if _, err := sendJSON(w, newSessionJSON(session, nil)); err != nil {
		Log.Error(err)
	}
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	session, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		sendError(w, errorStatus(err), err)
		return
	}
	if _, err := sendJSON(w, newSessionJSON(session, nil)); err != nil {
		Log.Error(err)
	}
}

// apply runs op against a copy of the session's board and stores the copy
// once op succeeds. The end time is stamped the first time the game is over.
// Operations on one session run one at a time; different sessions do not
// wait on each other.
func (s *Server) apply(
	ctx context.Context, id uuid.UUID, op operation,
) (*store.Session, mines.Result, error) {
	unlock := s.sessions.lock(id)
	defer unlock()

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, mines.Result{}, err
	}
	board := session.Board.Clone()
	board.SetRand(s.newRand())

	res, err := op(board)
	if err != nil {
		return nil, res, err
	}

	session.Board = board
	if session.Finish(s.now()) {
		Log.WithFields(logrus.Fields{
			"session": session.ID,
			"state":   res.State,
		}).Info("game over")
	}
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, res, err
	}
	return session, res, nil
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request, op operation) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	session, res, err := s.apply(r.Context(), id, op)
	if err != nil {
		sendError(w, errorStatus(err), err)
		return
	}
	if _, err := sendJSON(w, newSessionJSON(session, res.Changed)); err != nil {
		Log.Error(err)
	}
}

// handlePosOperation decodes the x and y query parameters for cell operations.
func (s *Server) handlePosOperation(
	w http.ResponseWriter, r *http.Request,
	op func(b *mines.Board, x, y int) (mines.Result, error),
) {
	var posParams PosParams
	if err := s.dec.Decode(&posParams, r.URL.Query()); err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	s.handleOperation(w, r, func(b *mines.Board) (mines.Result, error) {
		return op(b, posParams.X, posParams.Y)
	})
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.handlePosOperation(w, r, (*mines.Board).Reveal)
}

func (s *Server) handleChord(w http.ResponseWriter, r *http.Request) {
	s.handlePosOperation(w, r, (*mines.Board).Chord)
}

func (s *Server) handleFlag(w http.ResponseWriter, r *http.Request) {
	s.handlePosOperation(w, r, func(b *mines.Board, x, y int) (mines.Result, error) {
		return command.Execute(b, command.Command{Op: command.Flag, X: x, Y: y})
	})
}

func (s *Server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	s.handleOperation(w, r, func(b *mines.Board) (mines.Result, error) {
		return b.Forfeit(), nil
	})
}

// Accepts newline-separated commands in the request body, see [command].
// Commands run in order until the game is over. If any command is malformed or
// fails, no change is stored and the response carries the failing line.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBytes))
	if err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	cmds, err := command.ParseScript(string(body))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	s.handleOperation(w, r, func(b *mines.Board) (mines.Result, error) {
		return command.Run(b, cmds)
	})
}
