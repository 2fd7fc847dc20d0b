package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/darasahq/darasa/core/lti"
)

func CreateConsumer(t *testing.T, repo lti.Repository, name, key, secret string) lti.Consumer {
	t.Helper()

	now := time.Now().UTC()
	consumer, err := repo.CreateConsumer(context.Background(), lti.Consumer{
		Name:      name,
		Key:       key,
		Secret:    secret,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateConsumer() failed: %v", err)
	}
	return consumer
}

func CreateUser(t *testing.T, repo lti.Repository, consumerID int, externalID, username string) lti.User {
	t.Helper()

	usr, err := repo.CreateUser(context.Background(), lti.User{
		ConsumerID: consumerID,
		ExternalID: externalID,
		Username:   username,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateAssignment registers the outcome service URL and graded assignment a
// gradable launch would have provisioned.
func CreateAssignment(
	t *testing.T,
	repo lti.Repository,
	consumerID, userID int,
	courseID, usageID, serviceURL, sourcedID string,
) lti.Assignment {
	t.Helper()
	ctx := context.Background()

	svc, _, err := repo.GetOrCreateOutcomeService(ctx, consumerID, serviceURL)
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}

	now := time.Now().UTC()
	assignment, err := repo.UpsertAssignment(ctx, lti.Assignment{
		UserID:           userID,
		CourseID:         courseID,
		UsageID:          usageID,
		OutcomeServiceID: svc.ID,
		SourcedID:        sourcedID,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return assignment
}
