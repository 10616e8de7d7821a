package memory

import "errors"

var (
	// ErrOwnerRequired is returned when an operation is called without an owner id.
	// It is a caller contract violation, not a runtime condition.
	ErrOwnerRequired = errors.New("owner id is required")

	// ErrActorRequired is returned when a write is attempted without an actor id.
	ErrActorRequired = errors.New("actor id is required")

	// ErrEmptyContent is returned when a write carries no content.
	ErrEmptyContent = errors.New("content is required")
)
