package audit

import "time"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// Action describes what was done.
type Action string

const (
	ActionServiceCreated Action = "service_created"
	ActionServiceUpdated Action = "service_updated"
	ActionServiceDeleted Action = "service_deleted"
	ActionAdminLogin     Action = "admin_login"
	ActionAdminLogout    Action = "admin_logout"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	ActorType     ActorType `json:"actorType"`
	ActorID       string    `json:"actorId"`
	Action        Action    `json:"action"`
	ServiceID     string    `json:"serviceId,omitempty"`
	Summary       string    `json:"summary"`
	PreviousValue string    `json:"previousValue,omitempty"`
	NewValue      string    `json:"newValue,omitempty"`
}
