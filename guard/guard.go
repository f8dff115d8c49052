// Package guard checks room permissions granted to API keys and sessions
package guard

import (
	"strings"

	"github.com/relaycast/relaycast-go/common"
)

const wildcard = "*"

// CheckPermission returns a forbidden error unless the permissions grant the action on the room.
//
// Room patterns are matched against the room id without the tenant scope:
// an exact room id, a prefix ending with "*" ("chat:*" matches "chat:general") or "*" for any room.
// The "*" action grants every action.
func CheckPermission(roomID string, action string, permissions common.Permissions) error {
	for pattern, actions := range permissions {
		if !matchRoom(pattern, roomID) {
			continue
		}

		for _, allowed := range actions {
			if allowed == action || allowed == common.ActionAll {
				return nil
			}
		}
	}

	return common.ErrForbidden.New("%s is not allowed for room %s", action, roomID)
}

func matchRoom(pattern string, roomID string) bool {
	if pattern == wildcard || pattern == roomID {
		return true
	}

	if prefix, ok := strings.CutSuffix(pattern, wildcard); ok {
		return strings.HasPrefix(roomID, prefix)
	}

	return false
}
