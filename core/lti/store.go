package lti

import (
	"context"
	"errors"
)

var (
	// errors
	ErrNotFound          = errors.New("record not found")
	ErrConsumerExists    = errors.New("a consumer with this key already exists")
	ErrUserExists        = errors.New("a user for this consumer and external id already exists")
	ErrUsernameTaken     = errors.New("a user with this username already exists")
	ErrConsumerInUse     = errors.New("consumer still referenced by graded assignments")
	ErrUsernameExhausted = errors.New("could not derive a unique username")
)

// Repository is the persistence port for LTI records. Implementations must
// make BumpAssignmentVersion serializable: two concurrent bumps yield distinct,
// ordered values.
type Repository interface {
	// consumers
	CreateConsumer(ctx context.Context, c Consumer) (Consumer, error)
	GetConsumer(ctx context.Context, id int) (Consumer, error)
	GetConsumerByKey(ctx context.Context, key string) (Consumer, error)
	SetConsumerInstanceGUID(ctx context.Context, id int, guid string) error
	// DeleteConsumer refuses with ErrConsumerInUse while any Assignment still
	// references an OutcomeService owned by the consumer.
	DeleteConsumer(ctx context.Context, id int) error

	// users
	GetUserByExternalID(ctx context.Context, consumerID int, externalID string) (User, error)
	// CreateUser returns ErrUsernameTaken when the username is already in use.
	CreateUser(ctx context.Context, usr User) (User, error)

	// outcome services
	GetOutcomeService(ctx context.Context, id int) (OutcomeService, error)
	// GetOrCreateOutcomeService deduplicates on URL.
	GetOrCreateOutcomeService(ctx context.Context, consumerID int, url string) (OutcomeService, bool, error)

	// assignments
	GetAssignment(ctx context.Context, id int) (Assignment, error)
	// UpsertAssignment creates the (outcome service, sourcedid) row with
	// Version=0, or returns the existing one.
	UpsertAssignment(ctx context.Context, a Assignment) (Assignment, error)
	// BumpAssignmentVersion atomically increments and returns the
	// post-increment version.
	BumpAssignmentVersion(ctx context.Context, id int) (int, error)
	// AssignmentsForUsages returns the learner's assignments whose usage is any
	// of the given usage ids.
	AssignmentsForUsages(ctx context.Context, userID int, courseID string, usageIDs []string) ([]Assignment, error)
}
