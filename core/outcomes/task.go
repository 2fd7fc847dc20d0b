package outcomes

// Task asks the dispatcher to report one assignment's grade back to its Tool
// Consumer. Version is captured right after the bump that caused the task;
// dispatch drops the task when the persisted version has moved past it.
type Task struct {
	AssignmentID int
	Version      int
	Payload      Payload
}

// Payload is the tagged task variant: Leaf carries the score observed at
// submission time, Composite asks for an execution-time recomputation of the
// container's weighted score.
type Payload interface {
	kind() string
}

type Leaf struct {
	Earned   float64
	Possible float64
}

type Composite struct{}

func (Leaf) kind() string      { return "leaf" }
func (Composite) kind() string { return "composite" }

// Queue accepts tasks for asynchronous dispatch.
type Queue interface {
	Submit(t Task)
}
