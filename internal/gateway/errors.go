package gateway

import (
	"errors"

	"support-chat-service/internal/roomid"
)

var (
	// ErrNotAuthorized covers non-participants touching a room and
	// non-authors attempting delete-for-everyone.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotFound means the referenced message or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidMessage rejects a send carrying neither text nor a file.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrStorageUnavailable wraps persistence failures and timeouts. The
	// gateway never retries; clients own retry and the duplicate-id guard
	// makes their retries safe.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ErrorCode maps a gateway error onto the wire-level error code reported
// back to the originating connection.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, roomid.ErrInvalidParticipants):
		return "invalid_participants"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidMessage):
		return "invalid_message"
	case errors.Is(err, ErrStorageUnavailable):
		return "storage_unavailable"
	default:
		return "internal"
	}
}
