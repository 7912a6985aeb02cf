// Package store keeps game sessions and players. Boards are persisted as gob
// blobs next to the columns records are queried by.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vancomm/minefield/internal/config"
	"github.com/vancomm/minefield/internal/mines"
)

var Log = logrus.New()

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username taken")
)

type Session struct {
	ID        uuid.UUID
	PlayerID  *int64
	Board     *mines.Board
	StartedAt time.Time
	EndedAt   *time.Time
}

func NewSession(board *mines.Board, playerID *int64) *Session {
	return &Session{
		ID:        uuid.New(),
		PlayerID:  playerID,
		Board:     board,
		StartedAt: time.Now(),
	}
}

// Finish stamps the end time the first time the board is over and reports
// whether it did.
func (s *Session) Finish(now time.Time) bool {
	if s.EndedAt != nil || !s.Board.State().Over() {
		return false
	}
	s.EndedAt = &now
	return true
}

type Player struct {
	PlayerId     int64
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Record is a won game. Playtime is in milliseconds.
type Record struct {
	SessionID string  `json:"session_id" db:"session_id"`
	Username  *string `json:"username" db:"username"`
	Width     int     `json:"width" db:"width"`
	Height    int     `json:"height" db:"height"`
	MineCount int     `json:"mine_count" db:"mine_count"`
	Playtime  float64 `json:"playtime" db:"playtime"`
}

type RecordFilter struct {
	Username *string
	Params   *mines.GameParams
}

func (f RecordFilter) match(username *string, params mines.GameParams) bool {
	if f.Username != nil && (username == nil || *username != *f.Username) {
		return false
	}
	if f.Params != nil && *f.Params != params {
		return false
	}
	return true
}

type RecordOption = func(*RecordFilter)

func ForPlayer(username string) RecordOption {
	return func(f *RecordFilter) {
		f.Username = &username
	}
}

func ForParams(params mines.GameParams) RecordOption {
	return func(f *RecordFilter) {
		f.Params = &params
	}
}

func newFilter(options []RecordOption) RecordFilter {
	var f RecordFilter
	for _, op := range options {
		op(&f)
	}
	return f
}

type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	CreatePlayer(ctx context.Context, username string, passwordHash []byte) (*Player, error)
	GetPlayer(ctx context.Context, username string) (*Player, error)
	// Records lists won games, fastest first.
	Records(ctx context.Context, options ...RecordOption) ([]Record, error)
	Close() error
}

// Open connects the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (Store, error) {
	Log.WithField("driver", cfg.Driver).Info("opening store")
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewMemory(), nil
	case config.DriverSQLite:
		return OpenSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.PostgresURL())
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func encodeBoard(s *Session) ([]byte, error) {
	if s.Board == nil {
		return nil, errors.New("session has no board")
	}
	return s.Board.Bytes()
}
