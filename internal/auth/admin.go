package auth

import "strings"

// Reserved identities.
const (
	AdminID   int64 = 0
	UnknownID int64 = -1
)

// Reserved display names.
const (
	AdminName   = "admin"
	DeletedName = "deleted_user"
	UnknownName = "unknown_user"
)

var reservedNames = []string{AdminName, DeletedName, UnknownName}

// IsAdmin reports whether userID is the administrator pseudo-identity.
func IsAdmin(userID int64) bool {
	return userID == AdminID
}

// IsReservedName reports whether name collides with a reserved display name.
func IsReservedName(name string) bool {
	for _, r := range reservedNames {
		if strings.EqualFold(strings.TrimSpace(name), r) {
			return true
		}
	}
	return false
}
