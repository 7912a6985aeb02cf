// Package server exposes game sessions over HTTP and WebSocket. Every request
// that changes a board loads the session, applies the operation to a copy and
// stores it back, so a failed operation leaves no trace.
package server

import (
	"hash/maphash"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/auth"
	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/store"
)

var Log = logrus.New()

type Server struct {
	config   *config.Config
	store    store.Store
	cookies  *auth.Cookies
	dec      *schema.Decoder
	upgrader websocket.Upgrader

	// sessions serializes load-modify-store per session.
	sessions sessionLocks
	rndMu    sync.Mutex
	rnd      *rand.Rand
	now      func() time.Time
}

type Option func(*Server)

// WithRand fixes the generator used to place mines.
func WithRand(r *rand.Rand) Option {
	return func(s *Server) {
		s.rnd = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(cfg *config.Config, st store.Store, cookies *auth.Cookies, options ...Option) *Server {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)

	s := &Server{
		config:  cfg,
		store:   st,
		cookies: cookies,
		dec:     dec,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				Log.Debug("ws origin: ", r.Header.Get("Origin"))
				return true
			},
		},
		rnd: rand.New(rand.NewPCG(
			new(maphash.Hash).Sum64(),
			new(maphash.Hash).Sum64(),
		)),
		now: time.Now,
	}
	for _, op := range options {
		op(s)
	}
	return s
}

// newRand derives an independent generator from rnd, so boards of different
// sessions never share one.
func (s *Server) newRand() *rand.Rand {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return rand.New(rand.NewPCG(s.rnd.Uint64(), s.rnd.Uint64()))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/register", s.handleRegister)
	mux.HandleFunc("POST /v1/login", s.handleLogin)
	mux.HandleFunc("POST /v1/logout", s.handleLogout)
	mux.HandleFunc("GET /v1/status", s.handleStatus)

	mux.HandleFunc("GET /v1/records", s.handleGetRecords)
	mux.HandleFunc("GET /v1/myrecords", s.handleGetOwnRecords)

	mux.HandleFunc("POST /v1/game", s.handleNewGame)
	mux.HandleFunc("GET /v1/game/{id}", s.handleGetGame)
	mux.HandleFunc("POST /v1/game/{id}/open", s.handleOpen)
	mux.HandleFunc("POST /v1/game/{id}/flag", s.handleFlag)
	mux.HandleFunc("POST /v1/game/{id}/chord", s.handleChord)
	mux.HandleFunc("POST /v1/game/{id}/forfeit", s.handleForfeit)
	mux.HandleFunc("POST /v1/game/{id}/batch", s.handleBatch)

	mux.HandleFunc("/v1/game/{id}/connect", s.handleConnectWs)

	return useMiddleware(mux,
		s.cookies.Middleware,
		corsMiddleware(),
		loggingMiddleware,
	)
}
