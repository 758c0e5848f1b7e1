package websocket

import (
	"sort"
	"strings"
)

// RoomID derives the room shared by two users. The pair is sorted so both
// sides compute the same id.
func RoomID(a, b string) string {
	pair := []string{a, b}
	sort.Strings(pair)
	return strings.Join(pair, "-")
}

// IsParticipant reports whether userID is one of the two users of roomID.
// User ids may themselves contain "-", so the room is matched by its ends.
func IsParticipant(roomID, userID string) bool {
	if userID == "" || len(roomID) <= len(userID)+1 {
		return false
	}
	other, ok := strings.CutPrefix(roomID, userID+"-")
	if ok && RoomID(userID, other) == roomID {
		return true
	}
	other, ok = strings.CutSuffix(roomID, "-"+userID)
	return ok && RoomID(userID, other) == roomID
}
