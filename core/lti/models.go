package lti

import (
	"time"

	"github.com/darasahq/darasa/core"
)

// Consumer is an external Tool Consumer allowed to launch into the platform.
// Key is globally unique; Secret is the shared HMAC key and is never derivable
// from Key.
type Consumer struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Secret       string    `json:"-"`
	InstanceGUID string    `json:"instance_guid,omitempty"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// GenerateKey returns a fresh consumer key (32 hex characters).
func GenerateKey() string { return core.RandomHex(16) }

// GenerateSecret returns a fresh shared secret (32 hex characters).
func GenerateSecret() string { return core.RandomHex(16) }

// User maps a (consumer, external user id) pair to an internal identity.
// Exactly one User exists per pair; Username is unique across the store.
type User struct {
	ID         int       `json:"id"`
	ConsumerID int       `json:"consumer_id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// OutcomeService is a Tool Consumer endpoint accepting replaceResult posts.
// URL is unique within the store; launches quoting the same endpoint share one
// row.
type OutcomeService struct {
	ID         int    `json:"id"`
	ConsumerID int    `json:"consumer_id"`
	URL        string `json:"url"`
}

// Assignment links a learner and a graded usage to the Tool Consumer gradebook
// slot named by SourcedID. Version is bumped before every outcome send; a task
// submitted with an older version is dropped at dispatch time.
type Assignment struct {
	ID               int       `json:"id"`
	UserID           int       `json:"user_id"`
	CourseID         string    `json:"course_id"`
	UsageID          string    `json:"usage_id"`
	OutcomeServiceID int       `json:"outcome_service_id"`
	SourcedID        string    `json:"sourcedid"`
	Version          int       `json:"version"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}
