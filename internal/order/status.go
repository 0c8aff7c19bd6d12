package order

// Status is the single authoritative lifecycle field of an order.
type Status string

const (
	StatusPendingAcceptance Status = "pending_acceptance"
	StatusAccepted          Status = "accepted"
	StatusRejected          Status = "rejected"
	StatusReceived          Status = "received"
	StatusPreparing         Status = "preparing"
	StatusReady             Status = "ready"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
)

// transitions is the full table of allowed edges. Cancellation is reachable
// from every non-terminal state.
var transitions = map[Status][]Status{
	StatusPendingAcceptance: {StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted:          {StatusReceived, StatusCancelled},
	StatusReceived:          {StatusPreparing, StatusCancelled},
	StatusPreparing:         {StatusReady, StatusCancelled},
	StatusReady:             {StatusCompleted, StatusCancelled},
	StatusCompleted:         {},
	StatusRejected:          {},
	StatusCancelled:         {},
}

// progressRank orders statuses along the fulfillment path. Terminal abort
// states rank above everything so a cached terminal state is never regressed
// by a late partial event.
var progressRank = map[Status]int{
	StatusPendingAcceptance: 0,
	StatusAccepted:          1,
	StatusReceived:          2,
	StatusPreparing:         3,
	StatusReady:             4,
	StatusCompleted:         5,
	StatusRejected:          6,
	StatusCancelled:         6,
}

func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge from -> to is in the table.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status transitions are possible.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// ProgressRank returns the position of s in the state-machine ordering used
// by the client cache merge rule. Unknown statuses rank lowest.
func ProgressRank(s Status) int {
	return progressRank[s]
}
