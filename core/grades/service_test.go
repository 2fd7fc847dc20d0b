package grades_test

import (
	"context"
	"testing"
	"time"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/grades"
	"github.com/darasahq/darasa/core/lti"
	"github.com/darasahq/darasa/core/outcomes"
	dummydb "github.com/darasahq/darasa/storage/database/dummy"
	testutil "github.com/darasahq/darasa/tests"
)

var testClock core.Clock = func() time.Time { return time.Unix(1600000000, 0) }

type recordingQueue struct {
	tasks []outcomes.Task
}

func (q *recordingQueue) Submit(t outcomes.Task) { q.tasks = append(q.tasks, t) }

type fixture struct {
	ltiRepo lti.Repository
	queue   *recordingQueue
	svc     *grades.Service
}

// newFixture builds a small course:
//
//	chapter
//	└── section (gradable)
//	    ├── problem1 (gradable)
//	    └── problem2 (gradable)
func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	tree := dummydb.NewCourseTree(db)
	tree.AddBlock("c1", "chapter", "", false)
	tree.AddBlock("c1", "section", "chapter", true)
	tree.AddBlock("c1", "problem1", "section", true)
	tree.AddBlock("c1", "problem2", "section", true)

	ltiRepo := dummydb.NewLTIRepository(db)
	queue := &recordingQueue{}
	svc := grades.NewService(
		dummydb.NewGradesRepository(db), tree, ltiRepo, queue, testClock, core.NopLogger{},
	)
	return &fixture{ltiRepo: ltiRepo, queue: queue, svc: svc}
}

func TestService_Gradable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		usageID string
		want    bool
	}{
		{usageID: "problem1", want: true},
		{usageID: "section", want: true},
		{usageID: "chapter", want: false},
		{usageID: "unknown", want: false},
	}
	for _, tt := range tests {
		got, err := f.svc.Gradable(ctx, "c1", tt.usageID)
		if err != nil {
			t.Fatalf("Gradable(%q) failed: %v", tt.usageID, err)
		}
		if got != tt.want {
			t.Errorf("Gradable(%q) = %v, want %v", tt.usageID, got, tt.want)
		}
	}
}

func TestService_ScoreChanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	consumer := testutil.CreateConsumer(t, f.ltiRepo, "edX", "key1", "secret1")
	usr := testutil.CreateUser(t, f.ltiRepo, consumer.ID, "student-1", "student1_abcd")
	leaf := testutil.CreateAssignment(t, f.ltiRepo, consumer.ID, usr.ID,
		"c1", "problem1", "http://edx.test/outcomes", "sid-leaf")
	container := testutil.CreateAssignment(t, f.ltiRepo, consumer.ID, usr.ID,
		"c1", "section", "http://edx.test/outcomes", "sid-section")

	if err := f.svc.ScoreChanged(ctx, usr.ID, "c1", "problem1", 3, 4); err != nil {
		t.Fatalf("ScoreChanged() failed: %v", err)
	}

	if len(f.queue.tasks) != 2 {
		t.Fatalf("ScoreChanged() submitted %d tasks, want 2", len(f.queue.tasks))
	}
	byAssignment := make(map[int]outcomes.Task, len(f.queue.tasks))
	for _, task := range f.queue.tasks {
		byAssignment[task.AssignmentID] = task
	}

	leafTask, ok := byAssignment[leaf.ID]
	if !ok {
		t.Fatalf("ScoreChanged() no task for leaf assignment %d", leaf.ID)
	}
	if payload, ok := leafTask.Payload.(outcomes.Leaf); !ok || payload.Earned != 3 || payload.Possible != 4 {
		t.Errorf("ScoreChanged() leaf payload = %+v, want Leaf{3 4}", leafTask.Payload)
	}
	if leafTask.Version != 1 {
		t.Errorf("ScoreChanged() leaf task version = %d, want 1 (post-bump)", leafTask.Version)
	}

	containerTask, ok := byAssignment[container.ID]
	if !ok {
		t.Fatalf("ScoreChanged() no task for container assignment %d", container.ID)
	}
	if _, ok := containerTask.Payload.(outcomes.Composite); !ok {
		t.Errorf("ScoreChanged() container payload = %+v, want Composite", containerTask.Payload)
	}

	// versions persisted, not just submitted
	got, err := f.ltiRepo.GetAssignment(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("GetAssignment() failed: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("assignment version = %d, want 1", got.Version)
	}

	t.Run("second change supersedes the first", func(t *testing.T) {
		f.queue.tasks = nil
		if err := f.svc.ScoreChanged(ctx, usr.ID, "c1", "problem1", 4, 4); err != nil {
			t.Fatalf("ScoreChanged() failed: %v", err)
		}
		for _, task := range f.queue.tasks {
			if task.Version != 2 {
				t.Errorf("ScoreChanged() task version = %d, want 2", task.Version)
			}
		}
	})

	t.Run("unrelated usage fans out to nothing", func(t *testing.T) {
		f.queue.tasks = nil
		if err := f.svc.ScoreChanged(ctx, usr.ID, "c2", "problem9", 1, 1); err != nil {
			t.Fatalf("ScoreChanged() failed: %v", err)
		}
		if len(f.queue.tasks) != 0 {
			t.Errorf("ScoreChanged() submitted %d tasks, want 0", len(f.queue.tasks))
		}
	})
}

func TestService_WeightedScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// two problems attempted, one untouched
	if err := f.svc.ScoreChanged(ctx, 7, "c1", "problem1", 3, 4); err != nil {
		t.Fatalf("ScoreChanged() failed: %v", err)
	}
	if err := f.svc.ScoreChanged(ctx, 7, "c1", "problem2", 1, 4); err != nil {
		t.Fatalf("ScoreChanged() failed: %v", err)
	}

	earned, possible, err := f.svc.WeightedScore(ctx, 7, "c1", "section")
	if err != nil {
		t.Fatalf("WeightedScore() failed: %v", err)
	}
	if earned != 4 || possible != 8 {
		t.Errorf("WeightedScore() = %v/%v, want 4/8", earned, possible)
	}

	// another learner's scores stay separate
	earned, possible, err = f.svc.WeightedScore(ctx, 8, "c1", "section")
	if err != nil {
		t.Fatalf("WeightedScore() failed: %v", err)
	}
	if earned != 0 || possible != 0 {
		t.Errorf("WeightedScore() = %v/%v, want 0/0", earned, possible)
	}
}
