package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vancomm/minefield/internal/mines"
)

type memorySession struct {
	playerID  *int64
	board     []byte
	params    mines.GameParams
	won       bool
	startedAt time.Time
	endedAt   *time.Time
}

// Memory keeps everything in maps. Boards are stored encoded so callers never
// share state with the store.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]memorySession
	players  map[string]Player
	nextId   int64
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[uuid.UUID]memorySession),
		players:  make(map[string]Player),
	}
}

func (m *Memory) row(s *Session) (memorySession, error) {
	buf, err := encodeBoard(s)
	if err != nil {
		return memorySession{}, err
	}
	return memorySession{
		playerID:  s.PlayerID,
		board:     buf,
		params:    s.Board.GameParams,
		won:       s.Board.State() == mines.Won,
		startedAt: s.StartedAt,
		endedAt:   s.EndedAt,
	}, nil
}

func (m *Memory) CreateSession(ctx context.Context, s *Session) error {
	row, err := m.row(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = row
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	row, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	board, err := mines.DecodeBoard(row.board)
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		PlayerID:  row.playerID,
		Board:     board,
		StartedAt: row.startedAt,
		EndedAt:   row.endedAt,
	}, nil
}

func (m *Memory) UpdateSession(ctx context.Context, s *Session) error {
	row, err := m.row(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return ErrNotFound
	}
	m.sessions[s.ID] = row
	return nil
}

func (m *Memory) CreatePlayer(
	ctx context.Context, username string, passwordHash []byte,
) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.players[username]; ok {
		return nil, ErrUsernameTaken
	}
	m.nextId++
	player := Player{
		PlayerId:     m.nextId,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	m.players[username] = player
	return &player, nil
}

func (m *Memory) GetPlayer(ctx context.Context, username string) (*Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	player, ok := m.players[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &player, nil
}

func (m *Memory) Records(ctx context.Context, options ...RecordOption) ([]Record, error) {
	filter := newFilter(options)

	m.mu.RLock()
	defer m.mu.RUnlock()

	usernames := make(map[int64]string, len(m.players))
	for _, p := range m.players {
		usernames[p.PlayerId] = p.Username
	}

	records := []Record{}
	for id, row := range m.sessions {
		if !row.won || row.endedAt == nil {
			continue
		}
		var username *string
		if row.playerID != nil {
			if name, ok := usernames[*row.playerID]; ok {
				username = &name
			}
		}
		if !filter.match(username, row.params) {
			continue
		}
		records = append(records, Record{
			SessionID: id.String(),
			Username:  username,
			Width:     row.params.Width,
			Height:    row.params.Height,
			MineCount: row.params.MineCount,
			Playtime:  float64(row.endedAt.Sub(row.startedAt).Milliseconds()),
		})
	}
	slices.SortFunc(records, func(a, b Record) int {
		return cmp.Or(cmp.Compare(a.Playtime, b.Playtime), cmp.Compare(a.SessionID, b.SessionID))
	})
	return records, nil
}

func (m *Memory) Close() error {
	return nil
}
