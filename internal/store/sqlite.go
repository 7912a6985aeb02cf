package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/vancomm/minefield/internal/mines"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS player (
	player_id		INTEGER PRIMARY KEY AUTOINCREMENT,
	username		TEXT NOT NULL UNIQUE,
	password_hash	BLOB NOT NULL,
	created_at		INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS game_session (
	game_session_id	TEXT PRIMARY KEY,
	player_id		INTEGER REFERENCES player (player_id),
	width			INTEGER NOT NULL,
	height			INTEGER NOT NULL,
	mine_count		INTEGER NOT NULL,
	state			TEXT NOT NULL,
	board			BLOB NOT NULL,
	started_at		INTEGER NOT NULL,
	ended_at		INTEGER
);`

// SQLite stores sessions in a single database file. Times are kept as unix
// milliseconds.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func millis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func (s *SQLite) CreateSession(ctx context.Context, session *Session) error {
	board, err := encodeBoard(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var playerID sql.NullInt64
	if session.PlayerID != nil {
		playerID = sql.NullInt64{Int64: *session.PlayerID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO game_session (
	game_session_id, player_id, width, height, mine_count, state, board, started_at, ended_at
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		session.ID.String(),
		playerID,
		session.Board.Width,
		session.Board.Height,
		session.Board.MineCount,
		session.Board.State().String(),
		board,
		session.StartedAt.UnixMilli(),
		millis(session.EndedAt),
	)
	return err
}

func (s *SQLite) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var (
		board     []byte
		playerID  sql.NullInt64
		startedAt int64
		endedAt   sql.NullInt64
	)
	if err := s.db.QueryRowContext(ctx, `
SELECT player_id, board, started_at, ended_at
FROM game_session
WHERE game_session_id = ?;`,
		id.String(),
	).Scan(&playerID, &board, &startedAt, &endedAt); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	b, err := mines.DecodeBoard(board)
	if err != nil {
		return nil, err
	}
	session := &Session{
		ID:        id,
		Board:     b,
		StartedAt: time.UnixMilli(startedAt),
	}
	if playerID.Valid {
		session.PlayerID = &playerID.Int64
	}
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64)
		session.EndedAt = &t
	}
	return session, nil
}

func (s *SQLite) UpdateSession(ctx context.Context, session *Session) error {
	board, err := encodeBoard(session)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
UPDATE game_session
SET state = ?, board = ?, ended_at = ?
WHERE game_session_id = ?;`,
		session.Board.State().String(),
		board,
		millis(session.EndedAt),
		session.ID.String(),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CreatePlayer(
	ctx context.Context, username string, passwordHash []byte,
) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO player (username, password_hash, created_at)
VALUES (?, ?, ?);`,
		username, passwordHash, now.UnixMilli(),
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return nil, ErrUsernameTaken
	} else if err != nil {
		return nil, err
	}
	playerId, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	player := &Player{
		PlayerId:     playerId,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.UnixMilli(now.UnixMilli()),
	}
	return player, nil
}

func (s *SQLite) GetPlayer(ctx context.Context, username string) (*Player, error) {
	var (
		player    Player
		createdAt int64
	)
	if err := s.db.QueryRowContext(ctx, `
SELECT player_id, username, password_hash, created_at
FROM player
WHERE username = ?;`,
		username,
	).Scan(
		&player.PlayerId, &player.Username, &player.PasswordHash, &createdAt,
	); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	player.CreatedAt = time.UnixMilli(createdAt)
	return &player, nil
}

func (s *SQLite) Records(ctx context.Context, options ...RecordOption) ([]Record, error) {
	filter := newFilter(options)

	query := `
SELECT
	game_session_id
	, username
	, width
	, height
	, mine_count
	, ended_at - started_at playtime
FROM game_session
	LEFT OUTER JOIN player USING (player_id)
WHERE
	state = ?
	AND ended_at IS NOT NULL`
	args := []any{mines.Won.String()}

	var where []string
	if filter.Username != nil {
		where = append(where, "username = ?")
		args = append(args, *filter.Username)
	}
	if filter.Params != nil {
		where = append(where, "width = ?", "height = ?", "mine_count = ?")
		args = append(args, filter.Params.Width, filter.Params.Height, filter.Params.MineCount)
	}
	if len(where) > 0 {
		query += " AND " + strings.Join(where, " AND ")
	}
	query += " ORDER BY playtime, game_session_id;"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r        Record
			username sql.NullString
			playtime int64
		)
		if err := rows.Scan(
			&r.SessionID, &username, &r.Width, &r.Height, &r.MineCount, &playtime,
		); err != nil {
			return nil, err
		}
		if username.Valid {
			r.Username = &username.String
		}
		r.Playtime = float64(playtime)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
