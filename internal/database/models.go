package database

import (
	"time"

	"github.com/google/uuid"
)

// Resident is one row of the residents table.
type Resident struct {
	ResidentID   string     `json:"residentId"`
	HouseholdID  string     `json:"householdId"`
	Name         string     `json:"name"`
	Gender       string     `json:"gender"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	UID          *string    `json:"uid,omitempty"`
	MobileNumber *string    `json:"mobileNumber,omitempty"`
	HealthID     *string    `json:"healthId,omitempty"`
	District     string     `json:"district"`
	Mandal       string     `json:"mandal"`
	Secretariat  string     `json:"secretariat"`
	PHC          string     `json:"phc"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// User is a login account.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"fullName"`
	Role         string    `json:"role"`
	Secretariats string    `json:"-"` // JSON-encoded list
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UpdateLog is an audit row for a single field edit.
type UpdateLog struct {
	ID         int64     `json:"id"`
	ResidentID string    `json:"residentId"`
	Field      string    `json:"field"`
	OldValue   *string   `json:"oldValue"`
	NewValue   *string   `json:"newValue"`
	UserID     *int64    `json:"userId,omitempty"`
	Username   *string   `json:"username,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ImportLog records one bulk import run.
type ImportLog struct {
	ID              uuid.UUID  `json:"id"`
	Mode            string     `json:"mode"`
	Status          string     `json:"status"`
	HealthFile      string     `json:"healthFile"`
	DemographicFile string     `json:"demographicFile"`
	TotalRecords    int32      `json:"totalRecords"`
	Inserted        int32      `json:"inserted"`
	Updated         int32      `json:"updated"`
	Skipped         int32      `json:"skipped"`
	Failed          int32      `json:"failed"`
	Errors          []string   `json:"errors"`
	CreatedBy       *int64     `json:"createdBy,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Import log statuses.
const (
	ImportRunning   = "running"
	ImportCompleted = "completed"
	ImportFailed    = "failed"
)
