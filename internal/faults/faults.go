package faults

import (
	"errors"
	"fmt"
)

const (
	// Startup: bad input directory, output collision, bad config.
	ErrConfig = "E_CONFIG"

	// Region container: chunk table or payload framing out of bounds.
	ErrContainer = "E_CONTAINER"

	// Payload: unsupported compression kind or corrupt body.
	ErrCompression = "E_COMPRESSION"

	// Decoded tree: missing key or wrong value type.
	ErrSchema = "E_SCHEMA"

	// File system read/write.
	ErrIO = "E_IO"
)

var knownCodes = map[string]struct{}{
	ErrConfig:      {},
	ErrContainer:   {},
	ErrCompression: {},
	ErrSchema:      {},
	ErrIO:          {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// NoSlot marks an Error that is not tied to a chunk slot.
const NoSlot = -1

// Error carries a code plus the region file and chunk slot it occurred in.
type Error struct {
	Code string
	File string
	Slot int
	Err  error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.File != "" {
		msg += " " + e.File
	}
	if e.Slot >= 0 {
		msg += fmt.Sprintf(" slot=%d", e.Slot)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, faults.Schema)
// works through wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.File == "" && t.Slot == NoSlot && t.Err == nil
}

// Sentinels for errors.Is.
var (
	Config      = &Error{Code: ErrConfig, Slot: NoSlot}
	Container   = &Error{Code: ErrContainer, Slot: NoSlot}
	Compression = &Error{Code: ErrCompression, Slot: NoSlot}
	Schema      = &Error{Code: ErrSchema, Slot: NoSlot}
	IO          = &Error{Code: ErrIO, Slot: NoSlot}
)

func New(code string, format string, args ...any) *Error {
	return &Error{Code: code, Slot: NoSlot, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches code to err. An err that already is an *Error is returned
// as is.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*Error); ok {
		return fe
	}
	return &Error{Code: code, Slot: NoSlot, Err: err}
}

// At returns a copy of err annotated with file and slot. Codes already
// attached deeper in the chain are kept.
func At(err error, file string, slot int) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		cp := *fe
		if cp.File == "" {
			cp.File = file
		}
		if cp.Slot == NoSlot {
			cp.Slot = slot
		}
		return &cp
	}
	return &Error{Code: ErrIO, File: file, Slot: slot, Err: err}
}

// Prefix adds context to err's message while keeping its code, file and slot.
func Prefix(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	prefix := fmt.Sprintf(format, args...)
	var fe *Error
	if errors.As(err, &fe) {
		cp := *fe
		cp.Err = fmt.Errorf("%s: %w", prefix, fe.Err)
		return &cp
	}
	return fmt.Errorf("%s: %w", prefix, err)
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
