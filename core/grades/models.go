package grades

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("score not found")

// Score is a learner's current result on one scored usage. Weight scales the
// usage's contribution when its container is rolled up.
type Score struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	CourseID  string    `json:"course_id"`
	UsageID   string    `json:"usage_id"`
	Earned    float64   `json:"earned"`
	Possible  float64   `json:"possible"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Repository is the persistence port for learner scores.
type Repository interface {
	// UpsertScore stores the learner's current (earned, possible) for a usage,
	// replacing any previous value.
	UpsertScore(ctx context.Context, s Score) (Score, error)
	// ScoresForUsages returns the learner's scores for the given usage ids.
	ScoresForUsages(ctx context.Context, userID int, courseID string, usageIDs []string) ([]Score, error)
}

// UsageTree exposes the course structure the grade pipeline needs: which
// usages are gradable, what contains what.
type UsageTree interface {
	// Ancestors returns the chain of containers above a usage, nearest first.
	Ancestors(ctx context.Context, courseID, usageID string) ([]string, error)
	// Descendants returns every usage below a container, any depth.
	Descendants(ctx context.Context, courseID, usageID string) ([]string, error)
	// Gradable reports whether the platform treats the usage as graded.
	Gradable(ctx context.Context, courseID, usageID string) (bool, error)
}
