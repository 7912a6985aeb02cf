package server

import (
	"net/http"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/mines"
	"github.com/vancomm/minefield/internal/store"
)

func (s *Server) sendRecords(w http.ResponseWriter, r *http.Request, options ...store.RecordOption) {
	records, err := s.store.Records(r.Context(), options...)
	if err != nil {
		sendError(w, http.StatusInternalServerError, err)
		return
	}
	if _, err := sendJSON(w, records); err != nil {
		Log.Error(err)
	}
}

func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	options := []store.RecordOption{}
	if query.Has("username") {
		options = append(options, store.ForPlayer(query.Get("username")))
	}
	if query.Has("seed") {
		gameParams, err := mines.ParseSeed(query.Get("seed"))
		if err != nil {
			Log.Debug(err)
			sendError(w, http.StatusBadRequest, err)
			return
		}
		options = append(options, store.ForParams(*gameParams))
	}
	s.sendRecords(w, r, options...)
}

func (s *Server) handleGetOwnRecords(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		sendError(w, http.StatusUnauthorized, errNotLoggedIn)
		return
	}
	s.sendRecords(w, r, store.ForPlayer(claims.Username))
}
