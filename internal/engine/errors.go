package engine

import "fmt"

// InvalidTransitionError is returned when a sprint is asked to move to
// a state its current state does not permit.
type InvalidTransitionError struct {
	SprintID string
	From     string
	To       string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("sprint %s cannot move from %s to %s", e.SprintID, e.From, e.To)
}

// KindMismatchError is returned when a status is assigned to an entity
// whose kind or project does not match the status's flow.
type KindMismatchError struct {
	StatusID string
	Want     string
	Got      string
}

func (e KindMismatchError) Error() string {
	return fmt.Sprintf("status %s belongs to a %s flow, not %s", e.StatusID, e.Got, e.Want)
}
