package submitter

// State is the progress of one submission.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateSessionOpen
	StateQueueEnsured
	StatePublished
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateSessionOpen:
		return "session_open"
	case StateQueueEnsured:
		return "queue_ensured"
	case StatePublished:
		return "published"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
