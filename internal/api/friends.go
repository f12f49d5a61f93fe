package api

import (
	"context"
	"strconv"
)

func (d *Dispatcher) userFriends(ctx context.Context, req *Request) (Result, error) {
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

	friendIDs, err := req.Store.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := Result{}
	for _, friendID := range friendIDs {
		friend, err := req.Store.GetUser(ctx, friendID)
		if err != nil {
			return nil, err
		}
		if friend == nil {
			continue
		}

		games, err := req.Store.ListHeadToHead(ctx, userID, friendID)
		if err != nil {
			return nil, err
		}
		wins := 0
		for _, g := range games {
			if g.WinnerID == userID {
				wins++
			}
		}

		var winRate any
		if len(games) > 0 {
			winRate = float64(wins) / float64(len(games))
		}

		out[strconv.FormatInt(friendID, 10)] = map[string]any{
			"username":    friend.Username,
			"gamesPlayed": len(games),
			"winRate":     winRate,
		}
	}
	return out, nil
}

// resolveFriend reads friend_id, or friend_username when no id is given, and
// returns the active account it names.
func resolveFriend(ctx context.Context, req *Request) (int64, error) {
	if req.Params.has("friend_id") {
		friendID, err := req.Params.Int("friend_id")
		if err != nil {
			return 0, err
		}
		if _, err := loadSubject(ctx, req.Store, friendID); err != nil {
			return 0, err
		}
		return friendID, nil
	}

	if !req.Params.has("friend_username") {
		return 0, BadRequest("missing parameter %q", "friend_id")
	}
	name, err := req.Params.String("friend_username")
	if err != nil {
		return 0, err
	}
	friend, err := req.Store.GetValidUserByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if friend == nil {
		return 0, NotFound("user %q not found", name)
	}
	if _, err := loadSubject(ctx, req.Store, friend.ID); err != nil {
		return 0, err
	}
	return friend.ID, nil
}

func (d *Dispatcher) userAddFriend(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}

	friendID, err := resolveFriend(ctx, req)
	if err != nil {
		return nil, err
	}
	if friendID == userID {
		return nil, Forbidden("cannot befriend yourself")
	}

	already, err := req.Store.AreFriends(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, Forbidden("users %d and %d are already friends", userID, friendID)
	}

	if err := req.Store.AddFriendship(ctx, userID, friendID); err != nil {
		return nil, err
	}
	return success(), nil
}

func (d *Dispatcher) userRemoveFriend(ctx context.Context, req *Request) (Result, error) {
	userID, err := req.Params.Int("user_id")
	if err != nil {
		return nil, err
	}

	if _, err := loadSubject(ctx, req.Store, userID); err != nil {
		return nil, err
	}
	if err := requireEdit(ctx, req, userID); err != nil {
		return nil, err
	}

	friendID, err := resolveFriend(ctx, req)
	if err != nil {
		return nil, err
	}

	removed, err := req.Store.RemoveFriendship(ctx, userID, friendID)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, NotFound("users %d and %d are not friends", userID, friendID)
	}
	return success(), nil
}
