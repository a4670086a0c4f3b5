// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them into the
// activity_log table.
package queue

import "time"

// ActivityQueueName is the queue carrying audit events for every
// mutating operation.
const ActivityQueueName = "activity.log"

// Actions recorded by the storefront core.
const (
	ActionUserRegistered = "user.registered"
	ActionUserDeleted    = "user.deleted"
	ActionProductCreated = "product.created"
	ActionProductUpdated = "product.updated"
	ActionProductDeleted = "product.deleted"
)

// ActivityEvent is published after a successful mutation. It carries
// enough information for downstream consumers to audit or notify
// without querying the primary database. ActorID is empty for
// anonymous operations such as self-registration.
type ActivityEvent struct {
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	ActorID    string    `json:"actor_id,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
