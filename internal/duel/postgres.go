package duel

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository is the durable Repository. Move lists and the
// acknowledgment set live in jsonb columns; the version column backs
// the conditional save; a partial unique index enforces the one active
// game per unordered pair rule at the data layer.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromDB wraps an existing handle; used by tests.
func NewPostgresRepositoryFromDB(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS duel_users (
    nickname      TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS duel_games (
    id           TEXT PRIMARY KEY,
    initiator    TEXT NOT NULL REFERENCES duel_users(nickname),
    acceptor     TEXT NOT NULL REFERENCES duel_users(nickname),
    moves_uci    JSONB NOT NULL DEFAULT '[]'::jsonb,
    moves_san    JSONB NOT NULL DEFAULT '[]'::jsonb,
    state        TEXT NOT NULL,
    to_play      TEXT NOT NULL DEFAULT '',
    winner       TEXT NOT NULL DEFAULT '',
    in_check     BOOLEAN NOT NULL DEFAULT FALSE,
    in_checkmate BOOLEAN NOT NULL DEFAULT FALSE,
    in_stalemate BOOLEAN NOT NULL DEFAULT FALSE,
    in_draw      BOOLEAN NOT NULL DEFAULT FALSE,
    in_threefold BOOLEAN NOT NULL DEFAULT FALSE,
    insufficient BOOLEAN NOT NULL DEFAULT FALSE,
    acknowledged JSONB NOT NULL DEFAULT '[]'::jsonb,
    version      BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (initiator <> acceptor)
);

CREATE UNIQUE INDEX IF NOT EXISTS duel_games_active_pair
    ON duel_games (LEAST(initiator, acceptor), GREATEST(initiator, acceptor))
    WHERE state <> 'terminated';
`

// EnsureSchema creates the tables and indexes when absent.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateUser(ctx context.Context, u *User) error {
	const q = `
		INSERT INTO duel_users (nickname, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, q, u.Nickname, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UserByNickname(ctx context.Context, nickname string) (*User, error) {
	const q = `
		SELECT nickname, email, password_hash, created_at
		FROM duel_users
		WHERE nickname = $1`
	var u User
	err := r.db.QueryRowContext(ctx, q, nickname).Scan(&u.Nickname, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *PostgresRepository) SearchNicknames(ctx context.Context, substr string) ([]string, error) {
	const q = `
		SELECT nickname
		FROM duel_users
		WHERE strpos(nickname, $1) > 0
		ORDER BY nickname`
	rows, err := r.db.QueryContext(ctx, q, substr)
	if err != nil {
		return nil, fmt.Errorf("search nicknames: %w", err)
	}
	defer rows.Close()

	nicknames := make([]string, 0)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan nickname: %w", err)
		}
		nicknames = append(nicknames, n)
	}
	return nicknames, rows.Err()
}

const gameColumns = `
	id, initiator, acceptor, moves_uci, moves_san, state, to_play, winner,
	in_check, in_checkmate, in_stalemate, in_draw, in_threefold, insufficient,
	acknowledged, version, created_at, updated_at`

func (r *PostgresRepository) CreateGame(ctx context.Context, g *Game) error {
	movesUCI, movesSAN, acked, err := marshalGameLists(g)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO duel_games (
			id, initiator, acceptor, moves_uci, moves_san, state, to_play, winner,
			in_check, in_checkmate, in_stalemate, in_draw, in_threefold, insufficient,
			acknowledged, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4::jsonb,$5::jsonb,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15::jsonb,$16,$17,$18)`
	_, err = r.db.ExecContext(ctx, q,
		g.ID, g.Initiator, g.Acceptor, movesUCI, movesSAN, string(g.State), g.ToPlay, g.Winner,
		g.InCheck, g.InCheckmate, g.InStalemate, g.InDraw, g.InThreefoldRepetition, g.InsufficientMaterial,
		acked, g.Version, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GameByID(ctx context.Context, id string) (*Game, error) {
	q := `SELECT ` + gameColumns + ` FROM duel_games WHERE id = $1`
	g, err := scanGame(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) ActiveGameBetween(ctx context.Context, a, b string) (*Game, error) {
	q := `SELECT ` + gameColumns + `
		FROM duel_games
		WHERE state <> 'terminated'
		  AND ((initiator = $1 AND acceptor = $2) OR (initiator = $2 AND acceptor = $1))
		LIMIT 1`
	g, err := scanGame(r.db.QueryRowContext(ctx, q, a, b))
	if err != nil {
		return nil, fmt.Errorf("select active game: %w", err)
	}
	return g, nil
}

func (r *PostgresRepository) GamesForUser(ctx context.Context, nickname string) ([]*Game, error) {
	q := `SELECT ` + gameColumns + `
		FROM duel_games
		WHERE initiator = $1 OR acceptor = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, nickname)
	if err != nil {
		return nil, fmt.Errorf("select games for user: %w", err)
	}
	defer rows.Close()

	games := make([]*Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (r *PostgresRepository) SaveGame(ctx context.Context, g *Game) error {
	movesUCI, movesSAN, acked, err := marshalGameLists(g)
	if err != nil {
		return err
	}
	const q = `
		UPDATE duel_games SET
			moves_uci = $1::jsonb,
			moves_san = $2::jsonb,
			state = $3,
			to_play = $4,
			winner = $5,
			in_check = $6,
			in_checkmate = $7,
			in_stalemate = $8,
			in_draw = $9,
			in_threefold = $10,
			insufficient = $11,
			acknowledged = $12::jsonb,
			version = version + 1,
			updated_at = $13
		WHERE id = $14 AND version = $15`
	res, err := r.db.ExecContext(ctx, q,
		movesUCI, movesSAN, string(g.State), g.ToPlay, g.Winner,
		g.InCheck, g.InCheckmate, g.InStalemate, g.InDraw, g.InThreefoldRepetition, g.InsufficientMaterial,
		acked, g.UpdatedAt, g.ID, g.Version,
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleGame
	}
	g.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g            Game
		state        string
		movesUCIJSON []byte
		movesSANJSON []byte
		ackedJSON    []byte
	)
	err := row.Scan(
		&g.ID, &g.Initiator, &g.Acceptor, &movesUCIJSON, &movesSANJSON, &state, &g.ToPlay, &g.Winner,
		&g.InCheck, &g.InCheckmate, &g.InStalemate, &g.InDraw, &g.InThreefoldRepetition, &g.InsufficientMaterial,
		&ackedJSON, &g.Version, &g.CreatedAt, &g.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	g.State = State(state)
	if err := json.Unmarshal(movesUCIJSON, &g.MovesUCI); err != nil {
		return nil, fmt.Errorf("unmarshal moves_uci: %w", err)
	}
	if err := json.Unmarshal(movesSANJSON, &g.MovesSAN); err != nil {
		return nil, fmt.Errorf("unmarshal moves_san: %w", err)
	}
	if err := json.Unmarshal(ackedJSON, &g.Acknowledged); err != nil {
		return nil, fmt.Errorf("unmarshal acknowledged: %w", err)
	}
	return &g, nil
}

func marshalGameLists(g *Game) (movesUCI, movesSAN, acked []byte, err error) {
	if movesUCI, err = json.Marshal(emptyIfNil(g.MovesUCI)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal moves_uci: %w", err)
	}
	if movesSAN, err = json.Marshal(emptyIfNil(g.MovesSAN)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal moves_san: %w", err)
	}
	if acked, err = json.Marshal(emptyIfNil(g.Acknowledged)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal acknowledged: %w", err)
	}
	return movesUCI, movesSAN, acked, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "duel_users_email_key":
		return ErrEmailTaken
	case "duel_users_pkey":
		return ErrNicknameTaken
	case "duel_games_active_pair":
		return ErrActiveGameExists
	}
	return nil
}
