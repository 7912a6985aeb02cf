package server

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/store"
)

const maxPasswordBytes = 72

var (
	errCredentialsMissing = errors.New("body must contain url-encoded username and password")
	errPasswordTooLong    = errors.New("password must not exceed 72 bytes")
	errUnknownUsername    = errors.New("username unknown")
	errWrongPassword      = errors.New("wrong password")
	errNotLoggedIn        = errors.New("not logged in")
)

type PlayerInfo struct {
	Username string `json:"username"`
	PlayerId int64  `json:"player_id"`
}

type Status struct {
	LoggedIn bool        `json:"logged_in"`
	Player   *PlayerInfo `json:"player,omitempty"`
}

func credentials(r *http.Request) (username, password string, err error) {
	if err = r.ParseForm(); err != nil {
		return
	}
	username = r.FormValue("username")
	password = r.FormValue("password")
	if username == "" || password == "" {
		err = errCredentialsMissing
	}
	return
}

// This endpoint may be called for the side effect of the auth middleware that
// clears expired cookies.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{LoggedIn: false}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		status = Status{
			LoggedIn: true,
			Player:   &PlayerInfo{claims.Username, claims.PlayerId},
		}
		Log.Debug("refresh cookies")
		if err := s.cookies.Refresh(w, claims.PlayerId, claims.Username); err != nil {
			Log.Error(err)
		}
	}
	if _, err := sendJSON(w, status); err != nil {
		Log.Error(err)
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	username, password, err := credentials(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	passwordBytes := []byte(password)
	if len(passwordBytes) > maxPasswordBytes {
		sendError(w, http.StatusBadRequest, errPasswordTooLong)
		return
	}
	hash, err := bcrypt.GenerateFromPassword(passwordBytes, bcrypt.MinCost)
	if err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	player, err := s.store.CreatePlayer(r.Context(), username, hash)
	if err != nil {
		sendError(w, errorStatus(err), err)
		return
	}
	Log.WithField("username", username).Info("player registered")
	s.login(w, player)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	username, password, err := credentials(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	player, err := s.store.GetPlayer(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		sendError(w, http.StatusNotFound, errUnknownUsername)
		return
	} else if err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword(
		player.PasswordHash, []byte(password),
	); err != nil {
		sendError(w, http.StatusUnauthorized, errWrongPassword)
		return
	}
	s.login(w, player)
}

func (s *Server) login(w http.ResponseWriter, player *store.Player) {
	if err := s.cookies.Refresh(w, player.PlayerId, player.Username); err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	status := Status{
		LoggedIn: true,
		Player:   &PlayerInfo{player.Username, player.PlayerId},
	}
	if _, err := sendJSON(w, status); err != nil {
		Log.Error(err)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.cookies.Clear(w)
	if _, err := sendJSON(w, Status{LoggedIn: false}); err != nil {
		Log.Error(err)
	}
}
