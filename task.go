package worksteal

// Task is the unit of work the executor runs. Run executes the task to
// completion on the worker goroutine that picked it; failures inside Run are
// the task's own concern and are not observed by the scheduler.
//
// A Task also acts as a node of an intrusive list: implementations embed a
// TaskNode and return it from Node. The embedded node lets queues batch and
// transfer tasks in O(1) without any per-task allocation, at the cost of one
// rule: a task may sit in at most one queue at a time.
type Task interface {
	Run()
	Node() *TaskNode
}

// TaskNode carries the intrusive prev/next links queues use to chain tasks.
// Embed it in a task type and return a pointer to it from Node. The fields
// are owned exclusively by whichever queue currently holds the task.
type TaskNode struct {
	prev, next *TaskNode
	task       Task
}

// nodeOf returns t's node with the task back-reference bound, so a node popped
// from a queue can recover its Task.
func nodeOf(t Task) *TaskNode {
	n := t.Node()
	n.task = t
	return n
}

// FuncTask adapts a plain function to the Task interface.
type FuncTask struct {
	TaskNode
	fn func()
}

// NewFuncTask wraps fn as a submittable Task.
func NewFuncTask(fn func()) *FuncTask {
	return &FuncTask{fn: fn}
}

// Run invokes the wrapped function.
func (t *FuncTask) Run() { t.fn() }

// Node returns the task's intrusive list node.
func (t *FuncTask) Node() *TaskNode { return &t.TaskNode }
