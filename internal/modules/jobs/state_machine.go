package jobs

import (
	"fmt"

	"poolcare-platform/internal/models"
)

// Action is a status-changing operation on a job. Every transition goes
// through the table below so the set of valid (status, action) pairs is
// explicit and centrally enforced.
type Action string

const (
	ActionStart    Action = "start"
	ActionArrive   Action = "arrive"
	ActionComplete Action = "complete"
	ActionFail     Action = "fail"
	ActionCancel   Action = "cancel"
)

type transition struct {
	from map[string]bool
	to   string
}

// transitions maps each action to its valid predecessor statuses and target.
//
//   - start keeps en_route valid as a predecessor so a repeated start (e.g.
//     after an app restart) is not an error.
//   - arrive accepts scheduled directly: carers may mark arrival without an
//     explicit start.
//   - complete auto-promotes from scheduled/en_route since completing
//     implies presence on site.
//   - fail and cancel are reachable from any non-terminal status; completed
//     work can never be cancelled.
var transitions = map[Action]transition{
	ActionStart: {
		from: set(models.JobStatusScheduled, models.JobStatusEnRoute),
		to:   models.JobStatusEnRoute,
	},
	ActionArrive: {
		from: set(models.JobStatusScheduled, models.JobStatusEnRoute),
		to:   models.JobStatusOnSite,
	},
	ActionComplete: {
		from: set(models.JobStatusScheduled, models.JobStatusEnRoute, models.JobStatusOnSite),
		to:   models.JobStatusCompleted,
	},
	ActionFail: {
		from: set(models.JobStatusScheduled, models.JobStatusEnRoute, models.JobStatusOnSite),
		to:   models.JobStatusFailed,
	},
	ActionCancel: {
		from: set(models.JobStatusScheduled, models.JobStatusEnRoute, models.JobStatusOnSite),
		to:   models.JobStatusCancelled,
	},
}

func set(statuses ...string) map[string]bool {
	m := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		m[s] = true
	}
	return m
}

// NextStatus validates that action may be taken from the current status and
// returns the resulting status. Violations wrap ErrInvalidTransition.
func NextStatus(current string, action Action) (string, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", models.ErrInvalidTransition, action)
	}
	if !t.from[current] {
		return "", fmt.Errorf("%w: cannot %s a %s job", models.ErrInvalidTransition, action, current)
	}
	return t.to, nil
}
