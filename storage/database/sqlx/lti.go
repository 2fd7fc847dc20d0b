package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/lti"
)

type (
	consumerRow struct {
		ID           int            `db:"id"`
		Name         string         `db:"name"`
		Key          string         `db:"key"`
		Secret       string         `db:"secret"`
		InstanceGUID sql.NullString `db:"instance_guid"`
		CreatedAt    time.Time      `db:"created_at"`
		UpdatedAt    time.Time      `db:"updated_at"`
	}

	userRow struct {
		ID         int       `db:"id"`
		ConsumerID int       `db:"consumer_id"`
		ExternalID string    `db:"external_id"`
		Username   string    `db:"username"`
		CreatedAt  time.Time `db:"created_at"`
	}

	outcomeServiceRow struct {
		ID         int    `db:"id"`
		ConsumerID int    `db:"consumer_id"`
		URL        string `db:"url"`
	}

	assignmentRow struct {
		ID               int       `db:"id"`
		UserID           int       `db:"user_id"`
		CourseID         string    `db:"course_id"`
		UsageID          string    `db:"usage_id"`
		OutcomeServiceID int       `db:"outcome_service_id"`
		SourcedID        string    `db:"sourcedid"`
		Version          int       `db:"version"`
		CreatedAt        time.Time `db:"created_at"`
		UpdatedAt        time.Time `db:"updated_at"`
	}
)

func (r consumerRow) domain() lti.Consumer {
	return lti.Consumer{
		ID:           r.ID,
		Name:         r.Name,
		Key:          r.Key,
		Secret:       r.Secret,
		InstanceGUID: r.InstanceGUID.String,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r userRow) domain() lti.User {
	return lti.User(r)
}

func (r outcomeServiceRow) domain() lti.OutcomeService {
	return lti.OutcomeService(r)
}

func (r assignmentRow) domain() lti.Assignment {
	return lti.Assignment(r)
}

type ltiRepository struct {
	db *sqlx.DB
}

var _ lti.Repository = (*ltiRepository)(nil) // interface compliance check

func NewLTIRepository(db *sqlx.DB) *ltiRepository {
	return &ltiRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to lti.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return lti.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// uniqueViolation reports whether err is a psql unique violation on the given
// constraint.
func uniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && (constraint == "" || pqErr.Constraint == constraint)
	}
	return false
}

func (repo *ltiRepository) CreateConsumer(ctx context.Context, c lti.Consumer) (lti.Consumer, error) {
	var row consumerRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO lti_consumer (name, key, secret, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		c.Name, c.Key, c.Secret, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err, "") {
			return lti.Consumer{}, lti.ErrConsumerExists
		}
		return lti.Consumer{}, errors.Wrap(err, "creating consumer")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) GetConsumer(ctx context.Context, id int) (lti.Consumer, error) {
	var row consumerRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lti_consumer WHERE id = $1`, id); err != nil {
		return lti.Consumer{}, trapNoRowsErr(err, "getting consumer")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) GetConsumerByKey(ctx context.Context, key string) (lti.Consumer, error) {
	var row consumerRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM lti_consumer WHERE key = $1`, key); err != nil {
		return lti.Consumer{}, trapNoRowsErr(err, "getting consumer by key")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) SetConsumerInstanceGUID(ctx context.Context, id int, guid string) error {
	_, err := repo.db.ExecContext(ctx, `
		UPDATE lti_consumer SET instance_guid = $2, updated_at = now() WHERE id = $1`, id, guid)
	return errors.Wrap(err, "setting consumer instance guid")
}

func (repo *ltiRepository) DeleteConsumer(ctx context.Context, id int) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning tx")
	}
	defer func() { _ = tx.Rollback() }()

	var inUse bool
	err = tx.GetContext(ctx, &inUse, `
		SELECT EXISTS (
			SELECT 1 FROM graded_assignment ga
			JOIN outcome_service os ON os.id = ga.outcome_service_id
			WHERE os.consumer_id = $1
		)`, id)
	if err != nil {
		return errors.Wrap(err, "checking consumer references")
	}
	if inUse {
		return lti.ErrConsumerInUse
	}

	for _, q := range []string{
		`DELETE FROM outcome_service WHERE consumer_id = $1`,
		`DELETE FROM lti_user WHERE consumer_id = $1`,
		`DELETE FROM lti_consumer WHERE id = $1`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return errors.Wrap(err, "deleting consumer")
		}
	}
	return errors.Wrap(tx.Commit(), "committing consumer delete")
}

func (repo *ltiRepository) GetUserByExternalID(ctx context.Context, consumerID int, externalID string) (lti.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT * FROM lti_user WHERE consumer_id = $1 AND external_id = $2`, consumerID, externalID)
	if err != nil {
		return lti.User{}, trapNoRowsErr(err, "getting lti user")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) CreateUser(ctx context.Context, usr lti.User) (lti.User, error) {
	var row userRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO lti_user (consumer_id, external_id, username, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING *`,
		usr.ConsumerID, usr.ExternalID, usr.Username, usr.CreatedAt,
	)
	if err != nil {
		switch {
		case uniqueViolation(err, "lti_user_username_key"):
			return lti.User{}, lti.ErrUsernameTaken
		case uniqueViolation(err, "lti_user_consumer_id_external_id_key"):
			return lti.User{}, lti.ErrUserExists
		}
		return lti.User{}, errors.Wrap(err, "creating lti user")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) GetOutcomeService(ctx context.Context, id int) (lti.OutcomeService, error) {
	var row outcomeServiceRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM outcome_service WHERE id = $1`, id); err != nil {
		return lti.OutcomeService{}, trapNoRowsErr(err, "getting outcome service")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) GetOrCreateOutcomeService(ctx context.Context, consumerID int, url string) (lti.OutcomeService, bool, error) {
	var row outcomeServiceRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO outcome_service (consumer_id, url)
		VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING
		RETURNING *`,
		consumerID, url,
	)
	switch err {
	case nil:
		return row.domain(), true, nil
	case sql.ErrNoRows:
		// conflicted: the URL is already registered
		if err = repo.db.GetContext(ctx, &row, `SELECT * FROM outcome_service WHERE url = $1`, url); err != nil {
			return lti.OutcomeService{}, false, trapNoRowsErr(err, "getting outcome service by url")
		}
		return row.domain(), false, nil
	default:
		return lti.OutcomeService{}, false, errors.Wrap(err, "creating outcome service")
	}
}

func (repo *ltiRepository) GetAssignment(ctx context.Context, id int) (lti.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM graded_assignment WHERE id = $1`, id); err != nil {
		return lti.Assignment{}, trapNoRowsErr(err, "getting assignment")
	}
	return row.domain(), nil
}

func (repo *ltiRepository) UpsertAssignment(ctx context.Context, a lti.Assignment) (lti.Assignment, error) {
	var row assignmentRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO graded_assignment (user_id, course_id, usage_id, outcome_service_id, sourcedid, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7)
		ON CONFLICT (outcome_service_id, sourcedid) DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING *`,
		a.UserID, a.CourseID, a.UsageID, a.OutcomeServiceID, a.SourcedID, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return lti.Assignment{}, errors.Wrap(err, "upserting assignment")
	}
	return row.domain(), nil
}

// BumpAssignmentVersion relies on the row-level lock taken by UPDATE: two
// concurrent bumps serialize and observe distinct versions.
func (repo *ltiRepository) BumpAssignmentVersion(ctx context.Context, id int) (int, error) {
	var version int
	err := repo.db.GetContext(ctx, &version, `
		UPDATE graded_assignment SET version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version`, id)
	if err != nil {
		return 0, trapNoRowsErr(err, "bumping assignment version")
	}
	return version, nil
}

func (repo *ltiRepository) AssignmentsForUsages(ctx context.Context, userID int, courseID string, usageIDs []string) ([]lti.Assignment, error) {
	if len(usageIDs) == 0 {
		return nil, nil
	}
	var rows []assignmentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM graded_assignment
		WHERE user_id = $1 AND course_id = $2 AND usage_id = ANY($3)
		ORDER BY id`,
		userID, courseID, pq.Array(usageIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments for usages")
	}
	assignments := make([]lti.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.domain())
	}
	return assignments, nil
}
