package moderation

// Code is the typed outcome of a moderation operation. Business-rule
// failures are codes, not errors; a non-nil error accompanies CodeError only
// for infrastructure failures.
type Code int

const (
	CodeSuccess Code = iota
	CodeNotFound
	CodeUnauthorized
	CodeInvalidArguments
	CodeInvalidState
	CodeError
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeNotFound:
		return "not_found"
	case CodeUnauthorized:
		return "unauthorized"
	case CodeInvalidArguments:
		return "invalid_arguments"
	case CodeInvalidState:
		return "invalid_state"
	default:
		return "error"
	}
}
