package core

// Error codes for domain errors.
const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeRateLimited   = "rate_limited"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeRoomMismatch  = "room_mismatch"
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeRoomExists    = "room_exists"
	ErrCodeNotAdmin      = "not_admin"
	ErrCodeNotMember     = "not_member"
	ErrCodeMessageTooBig = "message_too_long"
	ErrCodePersistence   = "persistence_failed"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
