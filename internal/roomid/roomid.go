// Package roomid derives the canonical key of a two-participant room.
package roomid

import (
	"errors"
	"strings"
)

// Separator joins the sorted participant ids. Account ids are opaque
// strings issued by the account service and never contain it.
const Separator = "--"

var ErrInvalidParticipants = errors.New("invalid room participants")

// Derive returns the room key for the unordered pair {a, b}. The key is
// order-independent: Derive(a, b) == Derive(b, a). Self-chat is a caller
// bug and is rejected.
func Derive(a, b string) (string, error) {
	if a == "" || b == "" || a == b {
		return "", ErrInvalidParticipants
	}
	if b < a {
		a, b = b, a
	}
	return a + Separator + b, nil
}

// Participants splits a room key back into its two account ids.
func Participants(roomID string) (string, string, bool) {
	a, b, ok := strings.Cut(roomID, Separator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Includes reports whether the account id is one of the pair the room key
// encodes.
func Includes(roomID, accountID string) bool {
	a, b, ok := Participants(roomID)
	return ok && (a == accountID || b == accountID)
}
