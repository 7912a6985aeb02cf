package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vancomm/minefield/internal/mines"
)

type Postgres struct {
	db *pgxpool.Pool
}

// OpenPostgres migrates the database at dbUrl and connects a pool to it.
func OpenPostgres(ctx context.Context, dbUrl string) (*Postgres, error) {
	migrator, err := Migrate(dbUrl)
	if err != nil {
		return nil, err
	}
	if version, dirty, err := migrator.Version(); err == nil {
		Log.WithField("version", version).WithField("dirty", dirty).Info("database migrated")
	}
	if srcErr, dbErr := migrator.Close(); srcErr != nil || dbErr != nil {
		Log.WithError(errors.Join(srcErr, dbErr)).Warn("unable to close migrator")
	}

	poolConfig, err := pgxpool.ParseConfig(dbUrl)
	if err != nil {
		return nil, err
	}
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return &Postgres{db}, nil
}

func (pg *Postgres) CreateSession(ctx context.Context, s *Session) error {
	board, err := encodeBoard(s)
	if err != nil {
		return err
	}
	_, err = pg.db.Exec(ctx, `
		INSERT INTO game_session (
			game_session_id, player_id, width, height, mine_count, state, board, started_at, ended_at
		)
		VALUES (
			@game_session_id, @player_id, @width, @height, @mine_count, @state, @board, @started_at, @ended_at
		);`,
		pgx.NamedArgs{
			"game_session_id": s.ID.String(),
			"player_id":       s.PlayerID,
			"width":           s.Board.Width,
			"height":          s.Board.Height,
			"mine_count":      s.Board.MineCount,
			"state":           s.Board.State().String(),
			"board":           board,
			"started_at":      s.StartedAt,
			"ended_at":        s.EndedAt,
		})
	return err
}

func (pg *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var (
		board     []byte
		playerID  *int64
		startedAt time.Time
		endedAt   *time.Time
	)
	if err := pg.db.QueryRow(ctx, `
		SELECT player_id, board, started_at, ended_at
		FROM game_session
		WHERE game_session_id = $1;`,
		id.String(),
	).Scan(&playerID, &board, &startedAt, &endedAt); errors.Is(err, pgx.ErrNoRows) {
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
		PlayerID:  playerID,
		Board:     b,
		StartedAt: startedAt,
		EndedAt:   endedAt,
	}
	return session, nil
}

func (pg *Postgres) UpdateSession(ctx context.Context, s *Session) error {
	board, err := encodeBoard(s)
	if err != nil {
		return err
	}
	tag, err := pg.db.Exec(ctx, `
		UPDATE game_session
		SET state = @state
			, board = @board
			, ended_at = @ended_at
		WHERE game_session_id = @game_session_id;`,
		pgx.NamedArgs{
			"game_session_id": s.ID.String(),
			"state":           s.Board.State().String(),
			"board":           board,
			"ended_at":        s.EndedAt,
		})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (pg *Postgres) CreatePlayer(
	ctx context.Context, username string, passwordHash []byte,
) (*Player, error) {
	player := &Player{Username: username, PasswordHash: passwordHash}
	err := pg.db.QueryRow(ctx, `
		INSERT INTO player (
			username, password_hash
		)
		VALUES (
			@username, @password_hash
		)
		RETURNING player_id, created_at;`,
		pgx.NamedArgs{
			"username":      username,
			"password_hash": passwordHash,
		}).Scan(&player.PlayerId, &player.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return nil, ErrUsernameTaken
	} else if err != nil {
		return nil, err
	}
	return player, nil
}

func (pg *Postgres) GetPlayer(ctx context.Context, username string) (*Player, error) {
	rows, err := pg.db.Query(ctx, `
		SELECT player_id, username, password_hash, created_at
		FROM player
		WHERE username = $1;`,
		username)
	if err != nil {
		return nil, err
	}
	player, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[Player])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return player, err
}

func (f RecordFilter) whereClause() (string, pgx.NamedArgs) {
	args := pgx.NamedArgs{"won": mines.Won.String()}
	whereClauses := []string{}
	if f.Username != nil {
		args["username"] = *f.Username
		whereClauses = append(whereClauses, "username = @username")
	}
	if f.Params != nil {
		args["width"] = f.Params.Width
		args["height"] = f.Params.Height
		args["mineCount"] = f.Params.MineCount
		whereClauses = append(
			whereClauses,
			"width = @width",
			"height = @height",
			"mine_count = @mineCount",
		)
	}
	return strings.Join(whereClauses, " and "), args
}

func (pg *Postgres) Records(ctx context.Context, options ...RecordOption) ([]Record, error) {
	sql := `
	select
		game_session_id::text session_id
		, username
		, width
		, height
		, mine_count
		, (
			extract('epoch' from ended_at) - extract('epoch' from started_at)
		)::float8 * 1000 playtime
	from game_session
		left outer join player using (player_id)
	where
		state = @won
		and ended_at is not null`

	whereClause, args := newFilter(options).whereClause()
	if whereClause != "" {
		sql += " and " + whereClause
	}
	sql += " order by playtime, game_session_id"

	rows, err := pg.db.Query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (pg *Postgres) Close() error {
	pg.db.Close()
	return nil
}
