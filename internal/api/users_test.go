package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/picklepals/picklepals/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserReservedNames(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		f := newFixture(t, enabled)
		for _, name := range []string{"admin", "deleted_user", "unknown_user"} {
			_, err := f.call("user/create", "", map[string]any{"username": name, "password": passwordA})
			assertStatus(t, http.StatusBadRequest, err)
		}
	}
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t, true)

	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)

	_, err := f.call("user/create", "", map[string]any{"username": "userA", "password": passwordC})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/create", "", map[string]any{"username": "userC", "password": "weak"})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.call("user/create", "", map[string]any{"username": "userC"})
	assertStatus(t, http.StatusBadRequest, err)
}

func TestLoginAndLogout(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)

	res := f.mustCall("user/auth", "", map[string]any{"username": "userA", "password": passwordA})
	assert.Equal(t, a, res["user_id"])
	token := res["apiKey"].(string)

	_, err := f.call("user/auth", "", map[string]any{"username": "userA", "password": passwordB})
	assertStatus(t, http.StatusUnauthorized, err)
	wrongPassword := err.Error()
	_, err = f.call("user/auth", "", map[string]any{"username": "nobody", "password": passwordA})
	assertStatus(t, http.StatusUnauthorized, err)
	assert.Equal(t, wrongPassword, err.Error())

	res = f.mustCall("user/logout", token, nil)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, 0, f.sessions.Len())

	_, err = f.call("user/logout", token, nil)
	assertStatus(t, http.StatusUnauthorized, err)
}

func TestGetID(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	token, _ := f.login("userA", passwordA)

	res := f.mustCall("user/getId", token, map[string]any{"username": "userA"})
	assert.Equal(t, a, res["user_id"])

	for _, name := range []string{"admin", "deleted_user", "unknown_user"} {
		_, err := f.call("user/getId", token, map[string]any{"username": name})
		assertStatus(t, http.StatusBadRequest, err)
	}

	_, err := f.call("user/getId", token, map[string]any{"username": "nobody"})
	assertStatus(t, http.StatusNotFound, err)
}

func TestGetStatsPermissions(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)

	res := f.mustCall("user/getStats", tokenA, map[string]any{"user_id": a})
	assert.Equal(t, map[string]any{
		"username":     "userA",
		"gamesPlayed":  0,
		"gamesWon":     0,
		"averageScore": 0.0,
	}, res["1"])

	_, err := f.call("user/getStats", tokenA, map[string]any{"user_id": b})
	assertStatus(t, http.StatusForbidden, err)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})
	res = f.mustCall("user/getStats", tokenA, map[string]any{
		"user_id": []any{a, b},
		"objects": "username,gamesWon",
	})
	assert.Equal(t, map[string]any{"username": "userB", "gamesWon": 0}, res["2"])

	_, err = f.call("user/getStats", tokenA, map[string]any{"user_id": a, "objects": []any{"password"}})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.call("user/getStats", tokenA, map[string]any{"user_id": auth.AdminID})
	assertStatus(t, http.StatusNotFound, err)

	_, err = f.call("user/getStats", tokenA, map[string]any{"user_id": 99})
	assertStatus(t, http.StatusNotFound, err)
}

func TestGetStatsSentinels(t *testing.T) {
	f := newFixture(t, true)
	f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	admin, _ := f.login(auth.AdminName, adminPassword)
	tokenA, _ := f.login("userA", passwordA)

	f.mustCall("user/delete", admin, map[string]any{"user_id": b})

	res := f.mustCall("user/getStats", tokenA, map[string]any{"user_id": []any{auth.UnknownID, b}})
	assert.Equal(t, map[string]any{
		"username":     auth.UnknownName,
		"gamesPlayed":  nil,
		"gamesWon":     nil,
		"averageScore": nil,
	}, res["-1"])
	assert.Equal(t, map[string]any{
		"username":     auth.DeletedName,
		"gamesPlayed":  nil,
		"gamesWon":     nil,
		"averageScore": nil,
	}, res["2"])
}

func TestSetUsername(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)

	f.mustCall("user/setUsername", tokenA, map[string]any{"user_id": a, "username": "renamedA"})
	res := f.mustCall("user/getId", tokenA, map[string]any{"username": "renamedA"})
	assert.Equal(t, a, res["user_id"])

	// Keeping the current name is a no-op.
	f.mustCall("user/setUsername", tokenA, map[string]any{"user_id": a, "username": "renamedA"})

	_, err := f.call("user/setUsername", tokenA, map[string]any{"user_id": a, "username": "userB"})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/setUsername", tokenA, map[string]any{"user_id": a, "username": "admin"})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.call("user/setUsername", tokenA, map[string]any{"user_id": b, "username": "stolenB"})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/setUsername", tokenA, map[string]any{"user_id": 99, "username": "ghostly"})
	assertStatus(t, http.StatusNotFound, err)
}

func TestSetPassword(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	tokenB, _ := f.login("userB", passwordB)

	_, err := f.call("user/setPassword", tokenA, map[string]any{"user_id": a, "password": "weak"})
	assertStatus(t, http.StatusBadRequest, err)

	_, err = f.call("user/setPassword", tokenB, map[string]any{"user_id": a, "password": passwordC})
	assertStatus(t, http.StatusForbidden, err)

	f.mustCall("user/setPassword", tokenA, map[string]any{"user_id": a, "password": passwordC})

	_, err = f.call("user/auth", "", map[string]any{"username": "userA", "password": passwordA})
	assertStatus(t, http.StatusUnauthorized, err)
	f.login("userA", passwordC)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	otherTokenA, _ := f.login("userA", passwordA)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})
	res := f.mustCall("game/register", tokenA, map[string]any{
		"winner_id": a, "loser_id": b, "winner_points": 11, "loser_points": 7, "timestamp": 0,
	})
	gameID := res["game_id"].(string)
	f.mustCall("game/registerStats", tokenA, map[string]any{
		"game_id": gameID, "user_id": a,
		"swing_count": 30, "hit_count": 10, "swing_max_speed": 42.5,
		"q1_hits": 1, "q2_hits": 2, "q3_hits": 3, "q4_hits": 4,
	})

	res = f.mustCall("user/delete", tokenA, map[string]any{"user_id": a})
	assert.Equal(t, true, res["success"])

	friends, err := f.store.ListFriends(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, friends)

	stats, err := f.store.GetGameStats(ctx, gameID, a)
	require.NoError(t, err)
	assert.Nil(t, stats)

	game, err := f.store.GetGame(ctx, gameID)
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, a, game.WinnerID)

	u, err := f.store.GetUser(ctx, a)
	require.NoError(t, err)
	assert.False(t, u.Valid)
	assert.Equal(t, auth.DeletedName, u.Username)
	assert.Nil(t, u.PasswordHash)

	// Every session of the deleted user is gone.
	for _, token := range []string{tokenA, otherTokenA} {
		_, ok, err := f.sessions.Validate(token)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// The name is free again.
	f.createUser("userA", passwordC)
}

func TestDeleteUserPermissions(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	admin, _ := f.login(auth.AdminName, adminPassword)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})

	_, err := f.call("user/delete", tokenA, map[string]any{"user_id": b})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/delete", admin, map[string]any{"user_id": auth.AdminID})
	assertStatus(t, http.StatusNotFound, err)

	f.mustCall("user/delete", admin, map[string]any{"user_id": b})
	_, err = f.call("user/delete", admin, map[string]any{"user_id": b})
	assertStatus(t, http.StatusNotFound, err)
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	tokenA, _ := f.login("userA", passwordA)
	admin, _ := f.login(auth.AdminName, adminPassword)

	f.mustCall("user/delete", admin, map[string]any{"user_id": a})

	_, err := f.call("user/getStats", tokenA, map[string]any{"user_id": a})
	assertStatus(t, http.StatusUnauthorized, err)
}

func TestUserGames(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	tokenB, _ := f.login("userB", passwordB)

	first := f.mustCall("game/register", tokenA, map[string]any{
		"winner_id": a, "loser_id": b, "winner_points": 11, "loser_points": 3, "timestamp": 10,
	})["game_id"]
	second := f.mustCall("game/register", tokenA, map[string]any{
		"winner_id": auth.UnknownID, "loser_id": a, "winner_points": 12, "loser_points": 10, "timestamp": 20,
	})["game_id"]

	res := f.mustCall("user/games", tokenA, map[string]any{"user_id": a})
	assert.Equal(t, []string{first.(string), second.(string)}, res["games"])

	_, err := f.call("user/games", tokenB, map[string]any{"user_id": a})
	assertStatus(t, http.StatusForbidden, err)

	res = f.mustCall("user/games", tokenB, map[string]any{"user_id": b})
	assert.Equal(t, []string{first.(string)}, res["games"])
}

func TestAuthDisabledSkipsPermissions(t *testing.T) {
	f := newFixture(t, false)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)

	res := f.mustCall("user/getStats", "", map[string]any{"user_id": b})
	assert.Contains(t, res, "2")

	f.mustCall("user/setUsername", "", map[string]any{"user_id": a, "username": "renamedA"})
	f.mustCall("game/register", "", map[string]any{
		"winner_id": a, "loser_id": b, "winner_points": 11, "loser_points": 0,
	})
}
