package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddFriend(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	tokenB, _ := f.login("userB", passwordB)

	_, err := f.call("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": a})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/addFriend", tokenA, map[string]any{"user_id": b, "friend_id": a})
	assertStatus(t, http.StatusForbidden, err)

	_, err = f.call("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": 99})
	assertStatus(t, http.StatusNotFound, err)

	_, err = f.call("user/addFriend", tokenA, map[string]any{"user_id": a})
	assertStatus(t, http.StatusBadRequest, err)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_username": "userB"})

	// The edge counts in both directions.
	_, err = f.call("user/addFriend", tokenB, map[string]any{"user_id": b, "friend_id": a})
	assertStatus(t, http.StatusForbidden, err)

	f.mustCall("user/getStats", tokenB, map[string]any{"user_id": a})
}

func TestRemoveFriend(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	tokenA, _ := f.login("userA", passwordA)
	tokenB, _ := f.login("userB", passwordB)

	_, err := f.call("user/removeFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})
	assertStatus(t, http.StatusNotFound, err)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})
	f.mustCall("user/removeFriend", tokenB, map[string]any{"user_id": b, "friend_id": a})

	_, err = f.call("user/getStats", tokenB, map[string]any{"user_id": a})
	assertStatus(t, http.StatusForbidden, err)
}

func TestFriendsListing(t *testing.T) {
	f := newFixture(t, true)
	a := f.createUser("userA", passwordA)
	b := f.createUser("userB", passwordB)
	c := f.createUser("userC", passwordC)
	tokenA, _ := f.login("userA", passwordA)
	tokenC, _ := f.login("userC", passwordC)

	f.mustCall("user/addFriend", tokenA, map[string]any{"user_id": a, "friend_id": b})
	f.mustCall("user/addFriend", tokenC, map[string]any{"user_id": c, "friend_id": a})

	for i, g := range []map[string]any{
		{"winner_id": a, "loser_id": b, "winner_points": 11, "loser_points": 2},
		{"winner_id": b, "loser_id": a, "winner_points": 11, "loser_points": 9},
		{"winner_id": a, "loser_id": b, "winner_points": 12, "loser_points": 10},
		{"winner_id": a, "loser_id": b, "winner_points": 11, "loser_points": 0},
	} {
		g["timestamp"] = i
		f.mustCall("game/register", tokenA, g)
	}

	res := f.mustCall("user/friends", tokenA, map[string]any{"user_id": a})
	assert.Equal(t, Result{
		"2": map[string]any{"username": "userB", "gamesPlayed": 4, "winRate": 0.75},
		"3": map[string]any{"username": "userC", "gamesPlayed": 0, "winRate": nil},
	}, res)

	// C is A's friend, not B's.
	_, err := f.call("user/friends", tokenC, map[string]any{"user_id": b})
	assertStatus(t, http.StatusForbidden, err)

	res = f.mustCall("user/friends", tokenC, map[string]any{"user_id": a})
	assert.Len(t, res, 2)
}
