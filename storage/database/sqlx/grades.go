package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/grades"
)

type scoreRow struct {
	ID        int       `db:"id"`
	UserID    int       `db:"user_id"`
	CourseID  string    `db:"course_id"`
	UsageID   string    `db:"usage_id"`
	Earned    float64   `db:"earned"`
	Possible  float64   `db:"possible"`
	Weight    float64   `db:"weight"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r scoreRow) domain() grades.Score {
	return grades.Score(r)
}

type gradesRepository struct {
	db *sqlx.DB
}

var _ grades.Repository = (*gradesRepository)(nil) // interface compliance check

func NewGradesRepository(db *sqlx.DB) *gradesRepository {
	return &gradesRepository{db: db}
}

func (repo *gradesRepository) UpsertScore(ctx context.Context, s grades.Score) (grades.Score, error) {
	var row scoreRow
	err := repo.db.GetContext(ctx, &row, `
		INSERT INTO score (user_id, course_id, usage_id, earned, possible, weight, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, course_id, usage_id) DO UPDATE
		SET earned = EXCLUDED.earned, possible = EXCLUDED.possible,
			weight = EXCLUDED.weight, updated_at = EXCLUDED.updated_at
		RETURNING *`,
		s.UserID, s.CourseID, s.UsageID, s.Earned, s.Possible, s.Weight, s.UpdatedAt,
	)
	if err != nil {
		return grades.Score{}, errors.Wrap(err, "upserting score")
	}
	return row.domain(), nil
}

func (repo *gradesRepository) ScoresForUsages(ctx context.Context, userID int, courseID string, usageIDs []string) ([]grades.Score, error) {
	if len(usageIDs) == 0 {
		return nil, nil
	}
	var rows []scoreRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT * FROM score
		WHERE user_id = $1 AND course_id = $2 AND usage_id = ANY($3)
		ORDER BY id`,
		userID, courseID, pq.Array(usageIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying scores for usages")
	}
	scores := make([]grades.Score, 0, len(rows))
	for _, r := range rows {
		scores = append(scores, r.domain())
	}
	return scores, nil
}

// courseTree resolves block ancestry from the course_block table.
type courseTree struct {
	db *sqlx.DB
}

var _ grades.UsageTree = (*courseTree)(nil) // interface compliance check

func NewCourseTree(db *sqlx.DB) *courseTree {
	return &courseTree{db: db}
}

func (t *courseTree) Ancestors(ctx context.Context, courseID, usageID string) ([]string, error) {
	var ancestors []string
	err := t.db.SelectContext(ctx, &ancestors, `
		WITH RECURSIVE chain AS (
			SELECT usage_id, parent_id, 0 AS depth FROM course_block
			WHERE course_id = $1 AND usage_id = $2
			UNION ALL
			SELECT cb.usage_id, cb.parent_id, chain.depth + 1 FROM course_block cb
			JOIN chain ON cb.usage_id = chain.parent_id AND cb.course_id = $1
		)
		SELECT usage_id FROM chain WHERE depth > 0 ORDER BY depth`,
		courseID, usageID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying block ancestors")
	}
	return ancestors, nil
}

func (t *courseTree) Descendants(ctx context.Context, courseID, usageID string) ([]string, error) {
	var descendants []string
	err := t.db.SelectContext(ctx, &descendants, `
		WITH RECURSIVE subtree AS (
			SELECT usage_id, 0 AS depth FROM course_block
			WHERE course_id = $1 AND usage_id = $2
			UNION ALL
			SELECT cb.usage_id, subtree.depth + 1 FROM course_block cb
			JOIN subtree ON cb.parent_id = subtree.usage_id AND cb.course_id = $1
		)
		SELECT usage_id FROM subtree WHERE depth > 0 ORDER BY depth, usage_id`,
		courseID, usageID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying block descendants")
	}
	return descendants, nil
}

func (t *courseTree) Gradable(ctx context.Context, courseID, usageID string) (bool, error) {
	var gradable bool
	err := t.db.GetContext(ctx, &gradable, `
		SELECT gradable FROM course_block WHERE course_id = $1 AND usage_id = $2`,
		courseID, usageID,
	)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return gradable, errors.Wrap(err, "querying block gradability")
}
