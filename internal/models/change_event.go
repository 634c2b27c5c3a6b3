// internal/models/change_event.go
package models

import "fmt"

// EntityKind names the collection a change event originated from.
type EntityKind string

const (
	EntityJob     EntityKind = "job"
	EntityListing EntityKind = "listing"
	EntityUser    EntityKind = "user"
)

// Valid reports whether k is one of the handled entity kinds.
func (k EntityKind) Valid() bool {
	switch k {
	case EntityJob, EntityListing, EntityUser:
		return true
	}
	return false
}

// ChangeEvent is a single document mutation delivered by a trigger source.
// Before is nil for creations; After is always present.
type ChangeEvent struct {
	EventID    string     `json:"eventId,omitempty"`
	EntityKind EntityKind `json:"entityKind"`
	EntityID   string     `json:"entityId"`
	Before     Document   `json:"before,omitempty"`
	After      Document   `json:"after"`
}

// IsCreate reports whether the event describes a document creation.
func (e ChangeEvent) IsCreate() bool {
	return e.Before == nil
}

// StatusChanged reports whether before.status and after.status differ.
// Creations never count as a change.
func (e ChangeEvent) StatusChanged() bool {
	if e.IsCreate() {
		return false
	}
	bv, bok := e.Before.Value("status")
	av, aok := e.After.Value("status")
	return !SameValue(bv, bok, av, aok)
}

// Validate checks the structural invariants of the envelope.
func (e ChangeEvent) Validate() error {
	if !e.EntityKind.Valid() {
		return fmt.Errorf("unknown entity kind %q", e.EntityKind)
	}
	if e.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if e.After == nil {
		return fmt.Errorf("after snapshot is required")
	}
	return nil
}
