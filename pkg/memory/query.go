package memory

const (
	// DefaultQueryLimit is used when a long-term query does not set a limit.
	DefaultQueryLimit = 5

	// MaxQueryLimit bounds how many long-term records one query can return.
	MaxQueryLimit = 20
)

// Query describes a semantic lookup in the long-term tier.
type Query struct {
	// OwnerID selects the owner's collection. Required.
	OwnerID string

	// Text is embedded and used for nearest-neighbour search.
	Text string

	// Type is an optional equality filter on the record type.
	Type string

	// ActorID is an optional equality filter on the actor.
	ActorID string

	// Limit is the maximum number of records returned.
	Limit int
}

// NormalizedLimit returns q.Limit bounded to [1, MaxQueryLimit], falling back
// to DefaultQueryLimit when unset.
func (q Query) NormalizedLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return q.Limit
	}
}
