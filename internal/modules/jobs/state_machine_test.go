package jobs

import (
	"errors"
	"testing"

	"poolcare-platform/internal/models"
)

func TestNextStatusTable(t *testing.T) {
	cases := []struct {
		current string
		action  Action
		want    string
		ok      bool
	}{
		{models.JobStatusScheduled, ActionStart, models.JobStatusEnRoute, true},
		{models.JobStatusEnRoute, ActionStart, models.JobStatusEnRoute, true},
		{models.JobStatusScheduled, ActionArrive, models.JobStatusOnSite, true},
		{models.JobStatusEnRoute, ActionArrive, models.JobStatusOnSite, true},
		{models.JobStatusScheduled, ActionComplete, models.JobStatusCompleted, true},
		{models.JobStatusEnRoute, ActionComplete, models.JobStatusCompleted, true},
		{models.JobStatusOnSite, ActionComplete, models.JobStatusCompleted, true},
		{models.JobStatusScheduled, ActionFail, models.JobStatusFailed, true},
		{models.JobStatusOnSite, ActionFail, models.JobStatusFailed, true},
		{models.JobStatusScheduled, ActionCancel, models.JobStatusCancelled, true},
		{models.JobStatusEnRoute, ActionCancel, models.JobStatusCancelled, true},
		{models.JobStatusOnSite, ActionCancel, models.JobStatusCancelled, true},

		// Terminal statuses admit nothing.
		{models.JobStatusCompleted, ActionStart, "", false},
		{models.JobStatusCompleted, ActionArrive, "", false},
		{models.JobStatusCompleted, ActionCancel, "", false},
		{models.JobStatusCompleted, ActionFail, "", false},
		{models.JobStatusFailed, ActionComplete, "", false},
		{models.JobStatusFailed, ActionCancel, "", false},
		{models.JobStatusCancelled, ActionStart, "", false},
		{models.JobStatusCancelled, ActionComplete, "", false},

		// On-site work cannot go back to traveling.
		{models.JobStatusOnSite, ActionStart, "", false},
		{models.JobStatusOnSite, ActionArrive, "", false},
	}

	for _, tt := range cases {
		got, err := NextStatus(tt.current, tt.action)
		if tt.ok {
			if err != nil {
				t.Errorf("NextStatus(%s, %s) error: %v", tt.current, tt.action, err)
				continue
			}
			if got != tt.want {
				t.Errorf("NextStatus(%s, %s) = %s; want %s", tt.current, tt.action, got, tt.want)
			}
			continue
		}
		if !errors.Is(err, models.ErrInvalidTransition) {
			t.Errorf("NextStatus(%s, %s) = %v; want ErrInvalidTransition", tt.current, tt.action, err)
		}
	}
}

func TestNextStatusUnknownAction(t *testing.T) {
	if _, err := NextStatus(models.JobStatusScheduled, Action("teleport")); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("unknown action = %v; want ErrInvalidTransition", err)
	}
}

func TestCompletedNeverCancellable(t *testing.T) {
	// The cancel action must exclude completed from its predecessors no
	// matter how the table evolves.
	if transitions[ActionCancel].from[models.JobStatusCompleted] {
		t.Error("cancel lists completed as a valid predecessor")
	}
}
