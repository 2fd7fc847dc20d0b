package dummydb

import (
	"context"
	"sort"

	"github.com/darasahq/darasa/core/grades"
)

var gradesPKCount int

type gradesRepository struct {
	db *gradesTables
}

var _ grades.Repository = (*gradesRepository)(nil) // interface compliance check

func NewGradesRepository(db *DB) grades.Repository {
	return &gradesRepository{db: db.grades}
}

func (repo *gradesRepository) UpsertScore(_ context.Context, s grades.Score) (grades.Score, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.scores {
		if existing.UserID == s.UserID && existing.CourseID == s.CourseID && existing.UsageID == s.UsageID {
			existing.Earned = s.Earned
			existing.Possible = s.Possible
			existing.Weight = s.Weight
			existing.UpdatedAt = s.UpdatedAt
			return *existing, nil
		}
	}

	gradesPKCount++
	s.ID = gradesPKCount
	repo.db.scores[s.ID] = &s
	return s, nil
}

func (repo *gradesRepository) ScoresForUsages(_ context.Context, userID int, courseID string, usageIDs []string) ([]grades.Score, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	wanted := make(map[string]struct{}, len(usageIDs))
	for _, uid := range usageIDs {
		wanted[uid] = struct{}{}
	}

	var scores []grades.Score
	for _, s := range repo.db.scores {
		if s.UserID != userID || s.CourseID != courseID {
			continue
		}
		if _, ok := wanted[s.UsageID]; ok {
			scores = append(scores, *s)
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].ID < scores[j].ID })
	return scores, nil
}

// courseTree resolves block ancestry from the in-memory course_block rows.
type courseTree struct {
	db *gradesTables
}

var _ grades.UsageTree = (*courseTree)(nil) // interface compliance check

func NewCourseTree(db *DB) *courseTree {
	return &courseTree{db: db.grades}
}

// AddBlock registers a course block. parentID is empty for root blocks.
func (t *courseTree) AddBlock(courseID, usageID, parentID string, gradable bool) {
	t.db.Lock()
	defer t.db.Unlock()
	t.db.blocks = append(t.db.blocks, courseBlock{
		courseID: courseID,
		usageID:  usageID,
		parentID: parentID,
		gradable: gradable,
	})
}

func (t *courseTree) find(courseID, usageID string) (courseBlock, bool) {
	for _, b := range t.db.blocks {
		if b.courseID == courseID && b.usageID == usageID {
			return b, true
		}
	}
	return courseBlock{}, false
}

func (t *courseTree) Ancestors(_ context.Context, courseID, usageID string) ([]string, error) {
	t.db.RLock()
	defer t.db.RUnlock()

	var ancestors []string
	b, ok := t.find(courseID, usageID)
	for ok && b.parentID != "" {
		ancestors = append(ancestors, b.parentID)
		b, ok = t.find(courseID, b.parentID)
	}
	return ancestors, nil
}

func (t *courseTree) Descendants(_ context.Context, courseID, usageID string) ([]string, error) {
	t.db.RLock()
	defer t.db.RUnlock()

	var descendants []string
	frontier := []string{usageID}
	for len(frontier) > 0 {
		parent := frontier[0]
		frontier = frontier[1:]
		for _, b := range t.db.blocks {
			if b.courseID == courseID && b.parentID == parent {
				descendants = append(descendants, b.usageID)
				frontier = append(frontier, b.usageID)
			}
		}
	}
	return descendants, nil
}

func (t *courseTree) Gradable(_ context.Context, courseID, usageID string) (bool, error) {
	t.db.RLock()
	defer t.db.RUnlock()

	b, ok := t.find(courseID, usageID)
	return ok && b.gradable, nil
}
