package recency

import (
	"errors"
	"fmt"
	"time"
)

// Window names one of the time-bucketed lists kept per scope.
type Window string

const (
	// Recent holds the last hour of memories.
	Recent Window = "recent"

	// Today holds the last day of memories.
	Today Window = "today"

	// Weekly holds a week of memories that cleared the weekly threshold.
	Weekly Window = "weekly"
)

// DefaultWeeklyThreshold is the importance a record needs to enter Weekly.
const DefaultWeeklyThreshold = 7

// ErrUnknownWindow is returned when parsing an unrecognized window name.
var ErrUnknownWindow = errors.New("unknown recency window")

// WindowSpec bounds a window by length and time-to-live.
type WindowSpec struct {
	// Cap is the maximum number of records kept; older ones are dropped.
	Cap int

	// TTL is reset on every append. A window with no writes for longer
	// than TTL disappears as a whole.
	TTL time.Duration
}

// Windows lists the windows in their canonical order.
var Windows = []Window{Recent, Today, Weekly}

// DefaultWindowSpecs returns the stock caps and TTLs.
func DefaultWindowSpecs() map[Window]WindowSpec {
	return map[Window]WindowSpec{
		Recent: {Cap: 20, TTL: time.Hour},
		Today:  {Cap: 50, TTL: 24 * time.Hour},
		Weekly: {Cap: 100, TTL: 7 * 24 * time.Hour},
	}
}

// ParseWindow maps a name to a Window. An empty name means Recent.
func ParseWindow(name string) (Window, error) {
	switch Window(name) {
	case "":
		return Recent, nil
	case Recent, Today, Weekly:
		return Window(name), nil
	default:
		return "", fmt.Errorf("%w: %q (expected recent, today or weekly)", ErrUnknownWindow, name)
	}
}
