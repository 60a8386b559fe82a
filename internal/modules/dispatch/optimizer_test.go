package dispatch

import (
	"errors"
	"testing"
	"time"

	"poolcare-platform/internal/models"
)

var day = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

func window(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

// fallbackDist measures with the great-circle estimate, never failing.
func fallbackDist(from, to models.Location) (DistanceResult, error) {
	return FallbackEstimate(from, to, ModeDriving), nil
}

func TestNearestNeighborPlanOrdersByProximity(t *testing.T) {
	start := models.Location{Lat: 0, Lng: 0}
	// Three stops east of the start with wide-open windows; greedy order is
	// strictly by distance.
	stops := []routeStop{
		{JobID: "far", WindowStart: window(23), Location: models.Location{Lat: 0, Lng: 0.3}},
		{JobID: "near", WindowStart: window(23), Location: models.Location{Lat: 0, Lng: 0.1}},
		{JobID: "mid", WindowStart: window(23), Location: models.Location{Lat: 0, Lng: 0.2}},
	}

	plan := nearestNeighborPlan(start, day, stops, fallbackDist)

	if len(plan.Legs) != 3 {
		t.Fatalf("got %d legs; want 3", len(plan.Legs))
	}
	order := []string{plan.Legs[0].Stop.JobID, plan.Legs[1].Stop.JobID, plan.Legs[2].Stop.JobID}
	want := []string{"near", "mid", "far"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("visit order = %v; want %v", order, want)
		}
	}
	if plan.TotalDistanceMeters <= 0 {
		t.Errorf("TotalDistanceMeters = %d; want > 0", plan.TotalDistanceMeters)
	}
}

func TestNearestNeighborPlanPrefersReachableWindows(t *testing.T) {
	start := models.Location{Lat: 0, Lng: 0}
	// The nearest stop's window opened long before the cursor can reach it;
	// arrival after window start disqualifies it from the preferred set, so
	// the farther stop with a late window is visited first.
	stops := []routeStop{
		{JobID: "late-window", WindowStart: window(12), Location: models.Location{Lat: 0, Lng: 0.2}},
		{JobID: "missed-window", WindowStart: day.Add(-time.Hour), Location: models.Location{Lat: 0, Lng: 0.1}},
	}

	plan := nearestNeighborPlan(start, day, stops, fallbackDist)

	if plan.Legs[0].Stop.JobID != "late-window" {
		t.Errorf("first visit = %s; want late-window", plan.Legs[0].Stop.JobID)
	}
}

func TestNearestNeighborPlanTieBreaksOnJobID(t *testing.T) {
	start := models.Location{Lat: 0, Lng: 0}
	same := models.Location{Lat: 0, Lng: 0.1}
	stops := []routeStop{
		{JobID: "b", WindowStart: window(23), Location: same},
		{JobID: "a", WindowStart: window(23), Location: same},
	}

	plan := nearestNeighborPlan(start, day, stops, fallbackDist)

	if plan.Legs[0].Stop.JobID != "a" {
		t.Errorf("first visit = %s; want a (smallest job ID wins ties)", plan.Legs[0].Stop.JobID)
	}
}

func TestNearestNeighborPlanDeterministic(t *testing.T) {
	start := models.Location{Lat: 5.6, Lng: -0.19}
	stops := []routeStop{
		{JobID: "j1", WindowStart: window(9), Location: models.Location{Lat: 5.61, Lng: -0.18}},
		{JobID: "j2", WindowStart: window(11), Location: models.Location{Lat: 5.62, Lng: -0.21}},
		{JobID: "j3", WindowStart: window(13), Location: models.Location{Lat: 5.58, Lng: -0.20}},
		{JobID: "j4", WindowStart: window(15), Location: models.Location{Lat: 5.60, Lng: -0.16}},
	}

	first := nearestNeighborPlan(start, day, stops, fallbackDist)
	for run := 0; run < 5; run++ {
		again := nearestNeighborPlan(start, day, stops, fallbackDist)
		for i := range first.Legs {
			if again.Legs[i].Stop.JobID != first.Legs[i].Stop.JobID {
				t.Fatalf("run %d: leg %d = %s; want %s", run, i, again.Legs[i].Stop.JobID, first.Legs[i].Stop.JobID)
			}
		}
	}
}

func TestNearestNeighborPlanFailureKeepsOriginalOrder(t *testing.T) {
	start := models.Location{Lat: 0, Lng: 0}
	stops := []routeStop{
		{JobID: "first", WindowStart: window(9), Location: models.Location{Lat: 0, Lng: 0.3}},
		{JobID: "second", WindowStart: window(11), Location: models.Location{Lat: 0, Lng: 0.1}},
	}

	calls := 0
	failing := func(from, to models.Location) (DistanceResult, error) {
		calls++
		return DistanceResult{}, errors.New("provider down")
	}

	plan := nearestNeighborPlan(start, day, stops, failing)

	if len(plan.Legs) != 2 {
		t.Fatalf("got %d legs; want 2", len(plan.Legs))
	}
	if plan.Legs[0].Stop.JobID != "first" || plan.Legs[1].Stop.JobID != "second" {
		t.Errorf("order after failure = %s,%s; want first,second",
			plan.Legs[0].Stop.JobID, plan.Legs[1].Stop.JobID)
	}
	if plan.TotalDistanceMeters != 0 {
		t.Errorf("TotalDistanceMeters = %d; want 0 on failure", plan.TotalDistanceMeters)
	}
}

func TestNearestNeighborPlanEmpty(t *testing.T) {
	plan := nearestNeighborPlan(models.Location{}, day, nil, fallbackDist)
	if len(plan.Legs) != 0 || plan.TotalDistanceMeters != 0 {
		t.Errorf("empty plan = %+v; want no legs", plan)
	}
}

func TestRouteMetricsSumsLegs(t *testing.T) {
	start := models.Location{Lat: 0, Lng: 0}
	stops := []routeStop{
		{JobID: "a", Location: models.Location{Lat: 0, Lng: 0.1}},
		{JobID: "b", Location: models.Location{Lat: 0, Lng: 0.2}},
	}

	meters, seconds := routeMetrics(start, stops, fallbackDist)

	leg1, _ := fallbackDist(start, stops[0].Location)
	leg2, _ := fallbackDist(stops[0].Location, stops[1].Location)
	if meters != leg1.DistanceMeters+leg2.DistanceMeters {
		t.Errorf("meters = %d; want %d", meters, leg1.DistanceMeters+leg2.DistanceMeters)
	}
	if seconds != leg1.DurationSeconds+leg2.DurationSeconds {
		t.Errorf("seconds = %d; want %d", seconds, leg1.DurationSeconds+leg2.DurationSeconds)
	}
}
