package batch

// Status is a batch job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusInProgress Status = "in_progress"
	StatusFinalizing Status = "finalizing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusCancelling Status = "cancelling"
	StatusCancelled  Status = "cancelled"
)

var knownStatuses = map[Status]bool{
	StatusPending:    true,
	StatusValidating: true,
	StatusInProgress: true,
	StatusFinalizing: true,
	StatusCompleted:  true,
	StatusFailed:     true,
	StatusExpired:    true,
	StatusCancelling: true,
	StatusCancelled:  true,
}

// ParseStatus maps a remote status string onto the closed state set.
// Unrecognized strings map to pending so a new remote state never
// breaks reconciliation or masquerades as a terminal state.
func ParseStatus(s string) Status {
	if st := Status(s); knownStatuses[st] {
		return st
	}
	return StatusPending
}

// Terminal reports whether no further remote transitions can occur.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}
