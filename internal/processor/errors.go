package processor

import "errors"

var (
	// ErrUnsupportedType is returned when the declared media type is not allowed.
	ErrUnsupportedType = errors.New("unsupported media type")

	// ErrTooLarge is returned when the input exceeds the byte limit.
	ErrTooLarge = errors.New("input too large")

	// ErrDecode is returned when the payload cannot be decoded as an image.
	ErrDecode = errors.New("decode failed")

	// ErrEncode is returned when the codec cannot produce output.
	ErrEncode = errors.New("encode failed")

	// ErrBudgetExceeded is returned when the last pass is over budget and the
	// budget rejects such output.
	ErrBudgetExceeded = errors.New("output exceeds byte budget")

	// ErrSurfaceReleased is returned when a released surface is used.
	ErrSurfaceReleased = errors.New("surface already released")

	// ErrInvalidArgument is returned for structurally invalid limits or budgets.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Reason is the short failure code reported per item.
type Reason string

const (
	ReasonUnsupportedType Reason = "UnsupportedType"
	ReasonTooLarge        Reason = "TooLarge"
	ReasonDecodeError     Reason = "DecodeError"
	ReasonEncodeError     Reason = "EncodeError"
	ReasonBudgetExceeded  Reason = "BudgetExceeded"
)

// ReasonFor maps an error chain to its Reason.
func ReasonFor(err error) Reason {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return ReasonUnsupportedType
	case errors.Is(err, ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, ErrDecode):
		return ReasonDecodeError
	case errors.Is(err, ErrBudgetExceeded):
		return ReasonBudgetExceeded
	default:
		return ReasonEncodeError
	}
}
