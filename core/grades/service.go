package grades

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/lti"
	"github.com/darasahq/darasa/core/outcomes"
)

// AssignmentStore is the slice of the lti Repository the ingress hook needs.
type AssignmentStore interface {
	AssignmentsForUsages(ctx context.Context, userID int, courseID string, usageIDs []string) ([]lti.Assignment, error)
	BumpAssignmentVersion(ctx context.Context, id int) (int, error)
}

// Service persists learner scores and arms the outcome pipeline: every score
// change fans out one task per graded assignment mapped to the changed usage
// or one of its containers. It also serves as the dispatcher's grade source
// for composite recomputation.
type Service struct {
	repo        Repository
	tree        UsageTree
	assignments AssignmentStore
	queue       outcomes.Queue
	clock       core.Clock
	logger      core.Logger
}

var _ outcomes.GradeSource = (*Service)(nil)

func NewService(
	repo Repository,
	tree UsageTree,
	assignments AssignmentStore,
	queue outcomes.Queue,
	clock core.Clock,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		tree:        tree,
		assignments: assignments,
		queue:       queue,
		clock:       clock,
		logger:      logger,
	}
}

// Gradable reports whether a usage participates in grading.
func (svc *Service) Gradable(ctx context.Context, courseID, usageID string) (bool, error) {
	return svc.tree.Gradable(ctx, courseID, usageID)
}

// ScoreChanged records a learner's new score and submits outcome tasks for
// every matching assignment. The version is bumped before submission, so of
// two back-to-back changes only the later task survives the dispatcher's
// stale check.
func (svc *Service) ScoreChanged(ctx context.Context, userID int, courseID, usageID string, earned, possible float64) error {
	if _, err := svc.repo.UpsertScore(ctx, Score{
		UserID:    userID,
		CourseID:  courseID,
		UsageID:   usageID,
		Earned:    earned,
		Possible:  possible,
		Weight:    1,
		UpdatedAt: svc.clock.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "storing score")
	}

	ancestors, err := svc.tree.Ancestors(ctx, courseID, usageID)
	if err != nil {
		return errors.Wrap(err, "resolving usage ancestors")
	}
	usages := append([]string{usageID}, ancestors...)

	matches, err := svc.assignments.AssignmentsForUsages(ctx, userID, courseID, usages)
	if err != nil {
		return errors.Wrap(err, "finding graded assignments")
	}

	for _, assignment := range matches {
		version, err := svc.assignments.BumpAssignmentVersion(ctx, assignment.ID)
		if err != nil {
			return errors.Wrapf(err, "bumping version of assignment %d", assignment.ID)
		}

		var payload outcomes.Payload
		if assignment.UsageID == usageID {
			payload = outcomes.Leaf{Earned: earned, Possible: possible}
		} else {
			// the assignment maps a container of the changed usage; its score
			// is recomputed at dispatch time
			payload = outcomes.Composite{}
		}
		svc.queue.Submit(outcomes.Task{
			AssignmentID: assignment.ID,
			Version:      version,
			Payload:      payload,
		})
		svc.logger.Debug(fmt.Sprintf(
			"grades: submitted outcome task for assignment %d (version %d)", assignment.ID, version,
		))
	}
	return nil
}

// WeightedScore aggregates the learner's current scores over every gradable
// descendant of a container usage. Weights scale both sides of the ratio, so
// an unattempted child simply contributes nothing.
func (svc *Service) WeightedScore(ctx context.Context, userID int, courseID, usageID string) (earned, possible float64, err error) {
	descendants, err := svc.tree.Descendants(ctx, courseID, usageID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "resolving usage descendants")
	}
	usages := append([]string{usageID}, descendants...)

	scores, err := svc.repo.ScoresForUsages(ctx, userID, courseID, usages)
	if err != nil {
		return 0, 0, errors.Wrap(err, "loading scores")
	}
	for _, s := range scores {
		weight := s.Weight
		if weight == 0 {
			weight = 1
		}
		earned += s.Earned * weight
		possible += s.Possible * weight
	}
	return earned, possible, nil
}
