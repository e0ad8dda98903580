package world

import (
	"errors"
	"fmt"

	"seamcraft/internal/logging"
)

var (
	// ErrOutOfBounds is returned for coordinates outside a sector or the grid.
	ErrOutOfBounds = errors.New("coordinates out of bounds")
	// ErrNotGenerated is returned when a sector has no terrain yet.
	ErrNotGenerated = errors.New("sector not generated")
)

var log = logging.New("world")

// Invariant checks an internal consistency condition. Builds with the debug
// tag panic on violation; release builds log and let the caller guard.
func Invariant(cond bool, format string, args ...any) bool {
	if cond {
		return true
	}
	msg := fmt.Sprintf(format, args...)
	if debugBuild {
		panic("invariant violated: " + msg)
	}
	log.Errorf("invariant violated: %s", msg)
	return false
}
