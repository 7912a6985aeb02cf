package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vancomm/minefield/internal/command"
	"github.com/vancomm/minefield/internal/mines"
)

// handleConnectWs treats every text message as a batch of commands and answers
// with the session, or with an error payload when the batch fails. The
// connection stays open until the client closes it.
func (s *Server) handleConnectWs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.store.GetSession(r.Context(), id); err != nil {
		sendError(w, errorStatus(err), err)
		return
	}
	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Error("upgrade: ", err)
		return
	}
	defer c.Close()

	log := Log.WithField("session", id)
	for {
		mt, message, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read: ", err)
			}
			break
		}
		if mt != websocket.TextMessage {
			log.Debug("ignoring non-text message")
			continue
		}
		log.Debug("> ", string(message))

		var reply any
		cmds, err := command.ParseScript(string(message))
		if err == nil {
			session, res, applyErr := s.apply(r.Context(), id, func(b *mines.Board) (mines.Result, error) {
				return command.Run(b, cmds)
			})
			if applyErr == nil {
				reply = newSessionJSON(session, res.Changed)
			}
			err = applyErr
		}
		if err != nil {
			if errorStatus(err) >= http.StatusInternalServerError {
				log.Error(err)
				return
			}
			reply = newErrorJSON(err)
		}

		if err := c.WriteJSON(reply); err != nil {
			log.Error("write: ", err)
			break
		}
		log.Debug("< <session data>")
	}
}
