package launch

import "errors"

var (
	// ErrInvalidArgument is returned for nil or malformed input to a store write
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned when a field or status id does not exist
	ErrNotFound = errors.New("not found")
	// ErrDecode is returned when a stored value is not valid JSON
	ErrDecode = errors.New("decode error")
	// ErrForbidden is returned when the actor lacks the role an operation needs
	ErrForbidden = errors.New("forbidden")
)

// ErrorCode maps an error to the short code sent to clients in failure acks
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	default:
		return "internal"
	}
}
