package dispatch

import (
	"time"

	"poolcare-platform/internal/models"
)

// serviceDuration is the assumed time spent at each pool when advancing the
// route's time cursor between stops.
const serviceDuration = 30 * time.Minute

// distanceFunc yields travel metrics between two points. The service passes
// a provider-backed function that degrades to Haversine, so in practice it
// never fails; the optimizer still tolerates errors.
type distanceFunc func(from, to models.Location) (DistanceResult, error)

// routeStop couples a job with its pool coordinates for optimization.
type routeStop struct {
	JobID       string
	Sequence    *int
	WindowStart time.Time
	Location    models.Location
}

// routeLeg is one visit in a planned route with metrics for the leg from
// the previous location.
type routeLeg struct {
	Stop     routeStop
	Distance int // meters from the previous location
	Duration int // travel seconds from the previous location
	Arrival  time.Time
}

type routePlan struct {
	Legs                 []routeLeg
	TotalDistanceMeters  int
	TotalDurationSeconds int
}

// nearestNeighborPlan orders stops greedily by travel duration, preferring
// stops reachable before their scheduled window starts.
//
// At each step every unvisited stop is measured from the current location.
// Stops whose estimated arrival does not exceed their window start are
// favored; when none qualifies the window constraint is relaxed and the
// nearest stop wins regardless. Ties break toward the smallest job ID so
// the ordering is deterministic. The time cursor starts at dayStart
// (midnight of the target date) and advances to each chosen stop's window
// start plus a fixed service duration.
//
// If a distance lookup fails mid-route the remaining stops are appended in
// their original order with zero-valued legs.
func nearestNeighborPlan(start models.Location, dayStart time.Time, stops []routeStop, dist distanceFunc) routePlan {
	plan := routePlan{Legs: make([]routeLeg, 0, len(stops))}
	if len(stops) == 0 {
		return plan
	}

	unvisited := make([]routeStop, len(stops))
	copy(unvisited, stops)

	current := start
	cursor := dayStart

	for len(unvisited) > 0 {
		type candidate struct {
			idx    int
			result DistanceResult
		}

		best := candidate{idx: -1}
		bestInWindow := candidate{idx: -1}
		failed := false

		for i, s := range unvisited {
			r, err := dist(current, s.Location)
			if err != nil {
				failed = true
				break
			}
			arrival := cursor.Add(time.Duration(r.DurationSeconds) * time.Second)

			better := func(prev candidate) bool {
				if prev.idx == -1 {
					return true
				}
				if r.DurationSeconds != prev.result.DurationSeconds {
					return r.DurationSeconds < prev.result.DurationSeconds
				}
				return s.JobID < unvisited[prev.idx].JobID
			}

			if !arrival.After(s.WindowStart) && better(bestInWindow) {
				bestInWindow = candidate{idx: i, result: r}
			}
			if better(best) {
				best = candidate{idx: i, result: r}
			}
		}

		if failed || best.idx == -1 {
			// Provider gave nothing to work with; keep the original order
			// for whatever is left.
			for _, s := range unvisited {
				plan.Legs = append(plan.Legs, routeLeg{Stop: s, Arrival: cursor})
			}
			return plan
		}

		chosen := best
		if bestInWindow.idx != -1 {
			chosen = bestInWindow
		}

		s := unvisited[chosen.idx]
		arrival := cursor.Add(time.Duration(chosen.result.DurationSeconds) * time.Second)
		plan.Legs = append(plan.Legs, routeLeg{
			Stop:     s,
			Distance: chosen.result.DistanceMeters,
			Duration: chosen.result.DurationSeconds,
			Arrival:  arrival,
		})
		plan.TotalDistanceMeters += chosen.result.DistanceMeters
		plan.TotalDurationSeconds += chosen.result.DurationSeconds

		current = s.Location
		cursor = s.WindowStart.Add(serviceDuration)
		unvisited = append(unvisited[:chosen.idx], unvisited[chosen.idx+1:]...)
	}

	return plan
}

// routeMetrics totals travel distance and duration over stops in the given
// order. Legs that cannot be measured count as zero, mirroring the batch
// provider's per-element degradation.
func routeMetrics(start models.Location, stops []routeStop, dist distanceFunc) (meters, seconds int) {
	current := start
	for _, s := range stops {
		r, err := dist(current, s.Location)
		if err == nil {
			meters += r.DistanceMeters
			seconds += r.DurationSeconds
		}
		current = s.Location
	}
	return meters, seconds
}
