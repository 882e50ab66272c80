package domain

// EntityKind names a replicated record type.
type EntityKind string

const (
	EntityJob      EntityKind = "job"
	EntityLocation EntityKind = "location"
	EntityUser     EntityKind = "user"
)

// ChangeKind classifies a change to a single record.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	// ChangeEvict marks a record dropped because it left every active
	// subscription scope. It is not a delete: the record still exists
	// remotely, the local replica simply stopped holding it.
	ChangeEvict ChangeKind = "evict"
	// ChangeReady is a synthetic event published when a subscription's
	// initial data set has fully arrived. ID carries the subscription name.
	ChangeReady ChangeKind = "ready"
)

// ChangeEvent describes one committed change to the local replica. Exactly
// one event is emitted per affected record, after the change is visible to
// reads.
type ChangeEvent struct {
	Entity EntityKind
	ID     string
	Kind   ChangeKind
	// Remote is true when the change was delivered by the sync layer
	// rather than committed locally.
	Remote bool
}
