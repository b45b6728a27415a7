package models

import "time"

// Roles carried in the JWT role claim
const (
	RoleApplicant = "applicant"
	RoleOfficer   = "officer"
	RoleAdmin     = "admin"
)

// User represents a user in the system
type User struct {
	ID                      int64     `json:"id"`
	Email                   string    `json:"email"`
	Username                string    `json:"username"`
	PasswordHash            string    `json:"-"` // Not serialized
	Role                    string    `json:"role"`
	Age                     int       `json:"age"`
	HasChildren             bool      `json:"hasChildren"`
	IsSociallyDisadvantaged bool      `json:"isSociallyDisadvantaged"`
	CreatedAt               time.Time `json:"createdAt"`
}
