package outcomes

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/lti"
)

type (
	// Store is the persistence the dispatcher reads during a send. The lti
	// Repository satisfies it.
	Store interface {
		GetAssignment(ctx context.Context, id int) (lti.Assignment, error)
		GetOutcomeService(ctx context.Context, id int) (lti.OutcomeService, error)
		GetConsumer(ctx context.Context, id int) (lti.Consumer, error)
	}

	// GradeSource recomputes the current weighted score of a container usage
	// for composite tasks.
	GradeSource interface {
		WeightedScore(ctx context.Context, userID int, courseID, usageID string) (earned, possible float64, err error)
	}

	// Dispatcher executes outcome tasks: loads the assignment, enforces
	// version ordering, resolves the score and hands it to the poster. All
	// collaborators are explicit so tests can substitute them.
	Dispatcher struct {
		store  Store
		grades GradeSource
		poster Poster
		clock  core.Clock
		logger core.Logger
	}
)

// TransientError marks a dispatch failure the task system may retry with the
// same task.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether the dispatch failure may be retried.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func transient(err error, msg string) error {
	return &TransientError{Err: errors.Wrap(err, msg)}
}

func NewDispatcher(store Store, grades GradeSource, poster Poster, clock core.Clock, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		store:  store,
		grades: grades,
		poster: poster,
		clock:  clock,
		logger: logger,
	}
}

// SetGradeSource installs the composite score source. The grades service
// submits tasks to the queue that feeds this dispatcher, so the source is
// attached after both are constructed.
func (d *Dispatcher) SetGradeSource(grades GradeSource) {
	d.grades = grades
}

// Dispatch reports one task's score back to its Tool Consumer. Stale tasks
// and tasks for deleted assignments are dropped silently. Transient failures
// are returned as *TransientError; anything else is final.
func (d *Dispatcher) Dispatch(ctx context.Context, t Task) error {
	assignment, err := d.store.GetAssignment(ctx, t.AssignmentID)
	if err != nil {
		if errors.Cause(err) == lti.ErrNotFound {
			// assignment was deleted after the task was submitted
			d.logger.Debug(fmt.Sprintf("outcomes: assignment %d gone, dropping task", t.AssignmentID))
			return nil
		}
		return transient(err, "loading assignment")
	}

	// ordering guarantee: only the highest submitted version may send
	if t.Version < assignment.Version {
		d.logger.Info(fmt.Sprintf(
			"outcomes: dropping stale task for assignment %d (task version %d < current %d)",
			assignment.ID, t.Version, assignment.Version,
		))
		return nil
	}

	var earned, possible float64
	switch payload := t.Payload.(type) {
	case Leaf:
		earned, possible = payload.Earned, payload.Possible
	case Composite:
		if earned, possible, err = d.grades.WeightedScore(ctx, assignment.UserID, assignment.CourseID, assignment.UsageID); err != nil {
			return transient(err, "recomputing weighted score")
		}
	default:
		return errors.Errorf("outcomes: unknown task payload %T", t.Payload)
	}
	score := Normalize(earned, possible)

	outcomeSvc, err := d.store.GetOutcomeService(ctx, assignment.OutcomeServiceID)
	if err != nil {
		return transient(err, "loading outcome service")
	}
	consumer, err := d.store.GetConsumer(ctx, outcomeSvc.ConsumerID)
	if err != nil {
		return transient(err, "loading consumer")
	}

	started := d.clock.Now()
	result, err := d.poster.Post(ctx, Target{
		ServiceURL:     outcomeSvc.URL,
		SourcedID:      assignment.SourcedID,
		ConsumerKey:    consumer.Key,
		ConsumerSecret: consumer.Secret,
	}, score)

	switch result {
	case ResultSuccess:
		d.logger.Debug(fmt.Sprintf(
			"outcomes: sent score %.4f for assignment %d (version %d) in %s",
			score, assignment.ID, t.Version, d.clock.Now().Sub(started),
		))
		return nil
	case ResultTransient:
		d.logger.Warn(fmt.Sprintf("outcomes: transient failure for assignment %d: %v", assignment.ID, err))
		return &TransientError{Err: err}
	default:
		d.logger.Error(fmt.Sprintf("outcomes: permanent failure for assignment %d: %v", assignment.ID, err), err)
		return errors.Wrap(err, "sending outcome")
	}
}
