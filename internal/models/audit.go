package models

import (
	"encoding/json"
	"time"
)

// Audit action tags
const (
	ActionApplicationSubmitted = "application.submitted"
	ActionApplicationScored    = "application.scored"
	ActionApplicationRescored  = "application.rescored"
	ActionPartnerIngested      = "partner.ingested"
)

// EntityApplication is the entity type for application audit entries
const EntityApplication = "application"

// AuditLog is an immutable record of a state-changing operation.
// ActorID is nil for system and scheduled operations.
type AuditLog struct {
	ID         int64           `json:"id"`
	ActorID    *int64          `json:"actor_id"`
	Action     string          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Details    json.RawMessage `json:"details"`
	CreatedAt  time.Time       `json:"created_at"`
}
