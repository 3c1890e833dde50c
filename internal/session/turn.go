package session

import (
	"fmt"

	"github.com/google/uuid"
)

// TurnStatus is the state of a single send-and-receive cycle
type TurnStatus string

const (
	TurnIdle       TurnStatus = "idle"
	TurnSent       TurnStatus = "sent"
	TurnRunStarted TurnStatus = "run_started"
	TurnPolling    TurnStatus = "polling"
	TurnResolved   TurnStatus = "resolved"
	TurnFailed     TurnStatus = "failed"
)

// allowed transitions; polling may repeat while the run is queued or in progress
var turnTransitions = map[TurnStatus][]TurnStatus{
	TurnIdle:       {TurnSent, TurnFailed},
	TurnSent:       {TurnRunStarted, TurnFailed},
	TurnRunStarted: {TurnPolling, TurnFailed},
	TurnPolling:    {TurnPolling, TurnResolved, TurnFailed},
}

// Terminal reports whether no further transition is possible
func (s TurnStatus) Terminal() bool {
	return s == TurnResolved || s == TurnFailed
}

// Turn tracks one user-initiated exchange while it is in flight
type Turn struct {
	ID       string
	UserText string
	RunID    string
	Status   TurnStatus
	Polls    int
}

// NewTurn creates a turn in the idle state
func NewTurn(userText string) *Turn {
	return &Turn{
		ID:       uuid.NewString(),
		UserText: userText,
		Status:   TurnIdle,
	}
}

// Advance moves the turn to next, rejecting transitions the state machine does not allow
func (t *Turn) Advance(next TurnStatus) error {
	for _, allowed := range turnTransitions[t.Status] {
		if allowed == next {
			if next == TurnPolling {
				t.Polls++
			}
			t.Status = next
			return nil
		}
	}
	return fmt.Errorf("invalid turn transition %s -> %s", t.Status, next)
}
