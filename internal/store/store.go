package store

import (
	"context"
)

// User is a row of the users table. Credential and stat columns are nil once
// the account has been deleted.
type User struct {
	ID           int64
	Username     string
	PasswordHash *string
	Salt         *string
	Valid        bool
	GamesPlayed  *int
	GamesWon     *int
	AverageScore *float64
}

type Game struct {
	ID           string
	Timestamp    int64
	Type         string
	WinnerID     int64
	LoserID      int64
	WinnerPoints int
	LoserPoints  int
}

// PointsFor returns the points scored by userID in the game.
func (g *Game) PointsFor(userID int64) int {
	if g.WinnerID == userID {
		return g.WinnerPoints
	}
	return g.LoserPoints
}

// GameStats holds per-game swing statistics for one player.
type GameStats struct {
	GameID        string
	UserID        int64
	SwingCount    int
	HitCount      int
	SwingMaxSpeed float64
	QuadrantHits  [4]int
}

type Store interface {
	GetUser(ctx context.Context, userID int64) (*User, error)
	// GetValidUserByName looks up an active account by its display name.
	GetValidUserByName(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, passwordHash, salt string) (int64, error)
	EnsureAdmin(ctx context.Context, username, passwordHash, salt string) error
	UpdateUsername(ctx context.Context, userID int64, username string) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash, salt string) error
	UpdateUserStats(ctx context.Context, userID int64, played, won int, average float64) error
	// InvalidateUser tombstones an account: the row stays, everything else is blanked.
	InvalidateUser(ctx context.Context, userID int64, tombstone string) error

	AddFriendship(ctx context.Context, userID, friendID int64) error
	RemoveFriendship(ctx context.Context, userID, friendID int64) (bool, error)
	AreFriends(ctx context.Context, userID, friendID int64) (bool, error)
	ListFriends(ctx context.Context, userID int64) ([]int64, error)
	DeleteFriendships(ctx context.Context, userID int64) error

	CreateGame(ctx context.Context, game *Game) error
	GetGame(ctx context.Context, gameID string) (*Game, error)
	ListUserGames(ctx context.Context, userID int64) ([]Game, error)
	ListHeadToHead(ctx context.Context, userID, opponentID int64) ([]Game, error)

	CreateGameStats(ctx context.Context, stats *GameStats) error
	GetGameStats(ctx context.Context, gameID string, userID int64) (*GameStats, error)
	DeleteUserGameStats(ctx context.Context, userID int64) error

	// Atomic runs fn against a transaction-bound Store. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	Atomic(ctx context.Context, fn func(Store) error) error

	Close() error
}
