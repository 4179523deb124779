package protocol

import (
	"errors"
	"fmt"
)

// Decoding and encoding errors. Callers match them with errors.Is.
var (
	ErrTruncatedMessage   = errors.New("protocol: truncated message")
	ErrUnknownMessageType = errors.New("protocol: unknown message type")
	ErrFieldTooLong       = errors.New("protocol: field exceeds wire limit")
	ErrInvalidMessage     = errors.New("protocol: invalid message")
	ErrBatchTooDeep       = errors.New("protocol: batch nested too deep")
)

// UnknownTagError wraps ErrUnknownMessageType with the offending tag.
func UnknownTagError(t Tag) error {
	if t >= 0x20 && t < 0x7f {
		return fmt.Errorf("%w: 0x%02x '%c'", ErrUnknownMessageType, byte(t), rune(t))
	}
	return fmt.Errorf("%w: 0x%02x", ErrUnknownMessageType, byte(t))
}
