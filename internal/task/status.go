package task

// Status is the lifecycle state of a Task. A task moves strictly forward
// from Pending to Running to Finished.
type Status int32

const (
	// Pending means the task has not been submitted yet.
	Pending Status = iota
	// Running means the task was submitted to a pool.
	Running
	// Finished means the result was delivered or the task was cancelled
	// or discarded.
	Finished
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}
