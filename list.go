package worksteal

// TaskList is an intrusive doubly-linked list of tasks. Tasks are chained
// through their embedded TaskNode, so pushing, popping and splicing never
// allocate. A task belongs to at most one list at any moment.
//
// TaskList is not safe for concurrent use; callers guard it (the global queue
// holds one under its mutex, workers build batches on their own goroutine).
type TaskList struct {
	head, tail *TaskNode
	size       int
}

// PushBack appends t to the end of the list.
func (l *TaskList) PushBack(t Task) {
	l.pushNode(nodeOf(t))
}

// PopFront removes and returns the oldest task, or nil if the list is empty.
func (l *TaskList) PopFront() Task {
	n := l.popNode()
	if n == nil {
		return nil
	}
	return n.task
}

// Append splices all of other's tasks to the back of l in O(1), leaving other
// empty.
func (l *TaskList) Append(other *TaskList) {
	if other.size == 0 {
		return
	}
	if l.size == 0 {
		l.head, l.tail = other.head, other.tail
	} else {
		l.tail.next = other.head
		other.head.prev = l.tail
		l.tail = other.tail
	}
	l.size += other.size
	other.head, other.tail, other.size = nil, nil, 0
}

// Len returns the number of tasks in the list.
func (l *TaskList) Len() int { return l.size }

// Empty reports whether the list holds no tasks.
func (l *TaskList) Empty() bool { return l.size == 0 }

func (l *TaskList) pushNode(n *TaskNode) {
	n.prev = l.tail
	n.next = nil
	if l.tail == nil {
		l.head = n
	} else {
		l.tail.next = n
	}
	l.tail = n
	l.size++
}

func (l *TaskList) popNode() *TaskNode {
	n := l.head
	if n == nil {
		return nil
	}
	l.head = n.next
	if l.head == nil {
		l.tail = nil
	} else {
		l.head.prev = nil
	}
	n.prev, n.next = nil, nil
	l.size--
	return n
}
