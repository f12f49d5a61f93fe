package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx bool
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every request is serialized through it.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, q: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// dsn applies the connection pragmas to every connection the pool opens.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)"
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			password_hash TEXT,
			salt TEXT,
			valid INTEGER NOT NULL DEFAULT 1,
			games_played INTEGER,
			games_won INTEGER,
			average_score REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			game_type TEXT NOT NULL,
			winner_id INTEGER NOT NULL,
			loser_id INTEGER NOT NULL,
			winner_points INTEGER NOT NULL,
			loser_points INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_games_winner ON games(winner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_games_loser ON games(loser_id)`,
		`CREATE TABLE IF NOT EXISTS game_stats (
			game_id TEXT NOT NULL REFERENCES games(game_id),
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			swing_count INTEGER NOT NULL,
			hit_count INTEGER NOT NULL,
			swing_max_speed REAL NOT NULL,
			q1_hits INTEGER NOT NULL,
			q2_hits INTEGER NOT NULL,
			q3_hits INTEGER NOT NULL,
			q4_hits INTEGER NOT NULL,
			PRIMARY KEY (game_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS friends (
			user_id INTEGER NOT NULL REFERENCES users(user_id),
			friend_id INTEGER NOT NULL REFERENCES users(user_id),
			PRIMARY KEY (user_id, friend_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.tx {
		return nil
	}
	return s.db.Close()
}

// Atomic runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *SQLiteStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if s.tx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const userColumns = `user_id, username, password_hash, salt, valid, games_played, games_won, average_score`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &u.Valid,
		&u.GamesPlayed, &u.GamesWon, &u.AverageScore)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID. Returns nil, nil when no row exists.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (*User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	return u, nil
}

// GetValidUserByName retrieves an active user by username.
func (s *SQLiteStore) GetValidUserByName(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(s.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND valid = 1`, username))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}
	return u, nil
}

// CreateUser inserts a new account with the next free id and zeroed stats.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, salt string) (int64, error) {
	var id int64
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(user_id), 0) + 1 FROM users`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate user id: %w", err)
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password_hash, salt, valid, games_played, games_won, average_score)
		 VALUES (?, ?, ?, ?, 1, 0, 0, 0.0)`,
		id, username, passwordHash, salt)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// EnsureAdmin inserts the administrator row (id 0) if it does not exist yet.
func (s *SQLiteStore) EnsureAdmin(ctx context.Context, username, passwordHash, salt string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO users (user_id, username, password_hash, salt, valid, games_played, games_won, average_score)
		 VALUES (0, ?, ?, ?, 1, 0, 0, 0.0)
		 ON CONFLICT(user_id) DO NOTHING`,
		username, passwordHash, salt)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

// UpdateUsername renames a user.
func (s *SQLiteStore) UpdateUsername(ctx context.Context, userID int64, username string) error {
	if err := s.execOne(ctx, `UPDATE users SET username = ? WHERE user_id = ?`, username, userID); err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	return nil
}

// UpdatePassword replaces a user's password hash and salt.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, userID int64, passwordHash, salt string) error {
	if err := s.execOne(ctx, `UPDATE users SET password_hash = ?, salt = ? WHERE user_id = ?`,
		passwordHash, salt, userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateUserStats stores recomputed aggregate stats.
func (s *SQLiteStore) UpdateUserStats(ctx context.Context, userID int64, played, won int, average float64) error {
	if err := s.execOne(ctx,
		`UPDATE users SET games_played = ?, games_won = ?, average_score = ? WHERE user_id = ?`,
		played, won, average, userID); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}

// InvalidateUser blanks credentials and stats and marks the account invalid.
func (s *SQLiteStore) InvalidateUser(ctx context.Context, userID int64, tombstone string) error {
	if err := s.execOne(ctx,
		`UPDATE users SET username = ?, password_hash = NULL, salt = NULL, valid = 0,
		 games_played = NULL, games_won = NULL, average_score = NULL
		 WHERE user_id = ?`, tombstone, userID); err != nil {
		return fmt.Errorf("failed to invalidate user: %w", err)
	}
	return nil
}

// AddFriendship inserts a friendship edge.
func (s *SQLiteStore) AddFriendship(ctx context.Context, userID, friendID int64) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO friends (user_id, friend_id) VALUES (?, ?)`, userID, friendID)
	if err != nil {
		return fmt.Errorf("failed to add friendship: %w", err)
	}
	return nil
}

// RemoveFriendship deletes the edge between two users in either direction.
// Reports whether an edge existed.
func (s *SQLiteStore) RemoveFriendship(ctx context.Context, userID, friendID int64) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM friends
		 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userID, friendID, friendID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove friendship: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// AreFriends reports whether an edge exists in either direction.
func (s *SQLiteStore) AreFriends(ctx context.Context, userID, friendID int64) (bool, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM friends
		 WHERE (user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)`,
		userID, friendID, friendID, userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

// ListFriends returns the ids of every user sharing an edge with userID.
func (s *SQLiteStore) ListFriends(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT friend_id FROM friends WHERE user_id = ?
		 UNION
		 SELECT user_id FROM friends WHERE friend_id = ?
		 ORDER BY 1`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var friends []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		friends = append(friends, id)
	}
	return friends, rows.Err()
}

// DeleteFriendships removes every edge touching userID.
func (s *SQLiteStore) DeleteFriendships(ctx context.Context, userID int64) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM friends WHERE user_id = ? OR friend_id = ?`, userID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete friendships: %w", err)
	}
	return nil
}

const gameColumns = `game_id, timestamp, game_type, winner_id, loser_id, winner_points, loser_points`

func scanGame(row interface{ Scan(...any) error }) (*Game, error) {
	var g Game
	if err := row.Scan(&g.ID, &g.Timestamp, &g.Type, &g.WinnerID, &g.LoserID,
		&g.WinnerPoints, &g.LoserPoints); err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGame inserts a game record.
func (s *SQLiteStore) CreateGame(ctx context.Context, game *Game) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO games (`+gameColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		game.ID, game.Timestamp, game.Type, game.WinnerID, game.LoserID,
		game.WinnerPoints, game.LoserPoints)
	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetGame retrieves a game by ID. Returns nil, nil when no row exists.
func (s *SQLiteStore) GetGame(ctx context.Context, gameID string) (*Game, error) {
	g, err := scanGame(s.q.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE game_id = ?`, gameID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return g, nil
}

func (s *SQLiteStore) listGames(ctx context.Context, query string, args ...any) ([]Game, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// ListUserGames returns every game userID took part in, oldest first.
func (s *SQLiteStore) ListUserGames(ctx context.Context, userID int64) ([]Game, error) {
	return s.listGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE winner_id = ? OR loser_id = ?
		 ORDER BY timestamp, game_id`, userID, userID)
}

// ListHeadToHead returns the games played between two users.
func (s *SQLiteStore) ListHeadToHead(ctx context.Context, userID, opponentID int64) ([]Game, error) {
	return s.listGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE (winner_id = ? AND loser_id = ?) OR (winner_id = ? AND loser_id = ?)
		 ORDER BY timestamp, game_id`, userID, opponentID, opponentID, userID)
}

// CreateGameStats inserts a per-game stat row.
func (s *SQLiteStore) CreateGameStats(ctx context.Context, st *GameStats) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO game_stats (game_id, user_id, swing_count, hit_count, swing_max_speed,
		 q1_hits, q2_hits, q3_hits, q4_hits)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.GameID, st.UserID, st.SwingCount, st.HitCount, st.SwingMaxSpeed,
		st.QuadrantHits[0], st.QuadrantHits[1], st.QuadrantHits[2], st.QuadrantHits[3])
	if err != nil {
		return fmt.Errorf("failed to create game stats: %w", err)
	}
	return nil
}

// GetGameStats retrieves the stat row for (gameID, userID). Returns nil, nil when absent.
func (s *SQLiteStore) GetGameStats(ctx context.Context, gameID string, userID int64) (*GameStats, error) {
	var st GameStats
	err := s.q.QueryRowContext(ctx,
		`SELECT game_id, user_id, swing_count, hit_count, swing_max_speed,
		 q1_hits, q2_hits, q3_hits, q4_hits
		 FROM game_stats WHERE game_id = ? AND user_id = ?`, gameID, userID).Scan(
		&st.GameID, &st.UserID, &st.SwingCount, &st.HitCount, &st.SwingMaxSpeed,
		&st.QuadrantHits[0], &st.QuadrantHits[1], &st.QuadrantHits[2], &st.QuadrantHits[3])
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game stats: %w", err)
	}
	return &st, nil
}

// DeleteUserGameStats removes every stat row belonging to userID.
func (s *SQLiteStore) DeleteUserGameStats(ctx context.Context, userID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM game_stats WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete game stats: %w", err)
	}
	return nil
}
