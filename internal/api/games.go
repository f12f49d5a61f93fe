package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/picklepals/picklepals/internal/auth"
	"github.com/picklepals/picklepals/internal/store"
)

// DefaultGameType is stored when game/register omits game_type.
const DefaultGameType = "singles"

// gameNamespace seeds the name-based game ids.
var gameNamespace = uuid.MustParse("6b1c9a7e-2f4d-5c8b-9e3a-0d7f41a2c6b5")

// GameID derives the id of a game from its participants and timestamp, so
// resubmitting the same result yields the same id.
func GameID(winnerID, loserID, timestamp int64) string {
	return uuid.NewSHA1(gameNamespace, []byte(fmt.Sprintf("%d:%d:%d", winnerID, loserID, timestamp))).String()
}

// ValidScore reports whether winner:loser is a legal final score. Games end
// at 11 with a two point lead, go on by two past deuce, and are capped at 15.
func ValidScore(winner, loser int) bool {
	if loser < 0 {
		return false
	}
	switch {
	case winner == 11:
		return loser <= 9
	case winner > 11 && winner < 15:
		return loser == winner-2
	case winner == 15:
		return loser == 13 || loser == 14
	}
	return false
}

func isParticipant(g *store.Game, userID int64) bool {
	return g.WinnerID == userID || g.LoserID == userID
}

// checkParticipant accepts UNKNOWN or an active, non-admin account.
func checkParticipant(ctx context.Context, tx store.Store, userID int64) error {
	if userID == auth.UnknownID {
		return nil
	}
	_, err := loadSubject(ctx, tx, userID)
	return err
}

func (d *Dispatcher) gameRegister(ctx context.Context, req *Request) (Result, error) {
	winnerID, err := req.Params.Int("winner_id")
	if err != nil {
		return nil, err
	}
	loserID, err := req.Params.Int("loser_id")
	if err != nil {
		return nil, err
	}
	winnerPoints, err := req.Params.Int("winner_points")
	if err != nil {
		return nil, err
	}
	loserPoints, err := req.Params.Int("loser_points")
	if err != nil {
		return nil, err
	}
	timestamp, err := req.Params.OptionalInt("timestamp", d.now().Unix())
	if err != nil {
		return nil, err
	}
	gameType, err := req.Params.OptionalString("game_type", DefaultGameType)
	if err != nil {
		return nil, err
	}
	if gameType == "" {
		gameType = DefaultGameType
	}

	if winnerID == loserID && winnerID != auth.UnknownID {
		return nil, BadRequest("winner and loser must be different users")
	}
	if err := checkParticipant(ctx, req.Store, winnerID); err != nil {
		return nil, err
	}
	if err := checkParticipant(ctx, req.Store, loserID); err != nil {
		return nil, err
	}

	canWinner, err := req.Policy.CanEdit(ctx, req.Actor, winnerID)
	if err != nil {
		return nil, err
	}
	canLoser, err := req.Policy.CanEdit(ctx, req.Actor, loserID)
	if err != nil {
		return nil, err
	}
	if !canWinner && !canLoser {
		return nil, Forbidden("not allowed to register games for users %d and %d", winnerID, loserID)
	}

	if winnerPoints > 15 || loserPoints > 15 || !ValidScore(int(winnerPoints), int(loserPoints)) {
		return nil, BadRequest("invalid score %d-%d", winnerPoints, loserPoints)
	}

	game := &store.Game{
		ID:           GameID(winnerID, loserID, timestamp),
		Timestamp:    timestamp,
		Type:         gameType,
		WinnerID:     winnerID,
		LoserID:      loserID,
		WinnerPoints: int(winnerPoints),
		LoserPoints:  int(loserPoints),
	}
	existing, err := req.Store.GetGame(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Forbidden("game %s already registered", game.ID)
	}
	if err := req.Store.CreateGame(ctx, game); err != nil {
		return nil, err
	}

	for _, userID := range []int64{winnerID, loserID} {
		if userID == auth.UnknownID {
			continue
		}
		if err := recomputeStats(ctx, req.Store, userID); err != nil {
			return nil, err
		}
	}

	d.log.WithField("game_id", game.ID).WithField("winner_id", winnerID).WithField("loser_id", loserID).
		Info("Game registered")
	return Result{"game_id": game.ID}, nil
}

// recomputeStats rebuilds a user's aggregates from every game they played.
func recomputeStats(ctx context.Context, tx store.Store, userID int64) error {
	games, err := tx.ListUserGames(ctx, userID)
	if err != nil {
		return err
	}

	var won, points int
	for i := range games {
		if games[i].WinnerID == userID {
			won++
		}
		points += games[i].PointsFor(userID)
	}
	average := 0.0
	if len(games) > 0 {
		average = float64(points) / float64(len(games))
	}
	return tx.UpdateUserStats(ctx, userID, len(games), won, average)
}

func (d *Dispatcher) gameGet(ctx context.Context, req *Request) (Result, error) {
	gameID, err := req.Params.String("game_id")
	if err != nil {
		return nil, err
	}

	game, err := req.Store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, NotFound("game %s not found", gameID)
	}

	canWinner, err := req.Policy.CanView(ctx, req.Actor, game.WinnerID)
	if err != nil {
		return nil, err
	}
	canLoser, err := req.Policy.CanView(ctx, req.Actor, game.LoserID)
	if err != nil {
		return nil, err
	}
	if !canWinner && !canLoser {
		return nil, Forbidden("not allowed to view game %s", gameID)
	}

	return Result{
		"game_id":       game.ID,
		"timestamp":     game.Timestamp,
		"game_type":     game.Type,
		"winner_id":     game.WinnerID,
		"loser_id":      game.LoserID,
		"winner_points": game.WinnerPoints,
		"loser_points":  game.LoserPoints,
	}, nil
}

func nonNegative(p Params, key string) (int, error) {
	n, err := p.Int(key)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 1<<31-1 {
		return 0, BadRequest("parameter %q out of range", key)
	}
	return int(n), nil
}

func (d *Dispatcher) gameRegisterStats(ctx context.Context, req *Request) (Result, error) {
	gameID, err := req.Params.String("game_id")
	if err != nil {
		return nil, err
	}
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	stats := &store.GameStats{GameID: gameID, UserID: userID}
	if stats.SwingCount, err = nonNegative(req.Params, "swing_count"); err != nil {
		return nil, err
	}
	if stats.HitCount, err = nonNegative(req.Params, "hit_count"); err != nil {
		return nil, err
	}
	if stats.SwingMaxSpeed, err = req.Params.Float("swing_max_speed"); err != nil {
		return nil, err
	}
	if stats.SwingMaxSpeed < 0 {
		return nil, BadRequest("parameter %q out of range", "swing_max_speed")
	}
	for i := range stats.QuadrantHits {
		key := fmt.Sprintf("q%d_hits", i+1)
		if stats.QuadrantHits[i], err = nonNegative(req.Params, key); err != nil {
			return nil, err
		}
	}
	if stats.HitCount > stats.SwingCount {
		return nil, BadRequest("hit_count cannot exceed swing_count")
	}

	game, err := req.Store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, NotFound("game %s not found", gameID)
	}
	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}
	if !isParticipant(game, userID) {
		return nil, Forbidden("user %d did not play in game %s", userID, gameID)
	}

	existing, err := req.Store.GetGameStats(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, Forbidden("stats for user %d in game %s already registered", userID, gameID)
	}

	sum := 0
	for _, n := range stats.QuadrantHits {
		sum += n
	}
	if sum != stats.HitCount {
		return nil, BadRequest("quadrant hits sum to %d, expected %d", sum, stats.HitCount)
	}

	if err := req.Store.CreateGameStats(ctx, stats); err != nil {
		return nil, err
	}
	return success(), nil
}

func (d *Dispatcher) gameGetStats(ctx context.Context, req *Request) (Result, error) {
	gameID, err := req.Params.String("game_id")
	if err != nil {
		return nil, err
	}
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireView(ctx, req, userID); err != nil {
		return nil, err
	}

	stats, err := req.Store.GetGameStats(ctx, gameID, userID)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		return nil, NotFound("no stats for user %d in game %s", userID, gameID)
	}

	return Result{
		"game_id":         stats.GameID,
		"user_id":         stats.UserID,
		"swing_count":     stats.SwingCount,
		"hit_count":       stats.HitCount,
		"swing_max_speed": stats.SwingMaxSpeed,
		"q1_hits":         stats.QuadrantHits[0],
		"q2_hits":         stats.QuadrantHits[1],
		"q3_hits":         stats.QuadrantHits[2],
		"q4_hits":         stats.QuadrantHits[3],
	}, nil
}
