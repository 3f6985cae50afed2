package contract

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("record not found")
	ErrConflict          = errors.New("concurrent update conflict")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrCommunication     = errors.New("worker communication failed")
)

// Wire-level error kinds carried in responses and audit messages.
const (
	KindValidation        = "ValidationError"
	KindNotFound          = "NotFoundError"
	KindConflict          = "ConflictError"
	KindUnknownCapability = "UnknownCapability"
	KindCommunication     = "CommunicationError"
)

// ErrorKindOf maps an error to its wire kind. Unrecognized errors are
// reported as communication failures; the gateway guarantees workers never
// see a raw storage error, so anything else crossed a process or channel
// boundary.
func ErrorKindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnknownCapability):
		return KindUnknownCapability
	default:
		return KindCommunication
	}
}
