package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"poolcare-platform/internal/models"
	"poolcare-platform/internal/modules/dispatch"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

// fakeJobRepo mirrors the status guards of the real repository so tests
// exercise the same race behavior handlers see in production.
type fakeJobRepo struct {
	jobs     map[string]*models.Job
	pools    map[string]*models.Pool
	carers   map[string]*models.Carer
	coverage map[string]models.ReadingCoverage
	readings []*models.Reading

	carerLocations map[string]models.Location
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:           make(map[string]*models.Job),
		pools:          make(map[string]*models.Pool),
		carers:         make(map[string]*models.Carer),
		coverage:       make(map[string]models.ReadingCoverage),
		carerLocations: make(map[string]models.Location),
	}
}

func (f *fakeJobRepo) Create(ctx context.Context, job *models.Job) error {
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobRepo) FindByID(ctx context.Context, orgID, jobID string) (*models.Job, error) {
	j, ok := f.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) List(ctx context.Context, orgID string, lf ListFilter) ([]*models.Job, int, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if lf.CarerID != "" && (j.CarerID == nil || *j.CarerID != lf.CarerID) {
			continue
		}
		if lf.Status != "" && j.Status != lf.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeJobRepo) HasDuplicate(ctx context.Context, poolID string, windowStart time.Time, guard time.Duration) (bool, error) {
	for _, j := range f.jobs {
		if j.PoolID != poolID || j.Status == models.JobStatusCancelled {
			continue
		}
		diff := j.WindowStart.Sub(windowStart)
		if diff < 0 {
			diff = -diff
		}
		if diff <= guard {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeJobRepo) Assign(ctx context.Context, orgID, jobID, carerID string, sequence *int) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return models.ErrInvalidTransition
	}
	j.CarerID = &carerID
	j.Sequence = sequence
	return nil
}

func (f *fakeJobRepo) Unassign(ctx context.Context, orgID, jobID string) error {
	j, ok := f.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	j.CarerID, j.Sequence, j.ETAMinutes, j.DistanceMeters = nil, nil, nil, nil
	return nil
}

func (f *fakeJobRepo) UpdateWindow(ctx context.Context, orgID, jobID string, start, end time.Time) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return models.ErrInvalidTransition
	}
	j.WindowStart, j.WindowEnd = start, end
	return nil
}

func (f *fakeJobRepo) MarkStarted(ctx context.Context, orgID, jobID string, at time.Time, etaMinutes *int) error {
	j, ok := f.jobs[jobID]
	if !ok || (j.Status != models.JobStatusScheduled && j.Status != models.JobStatusEnRoute) {
		return models.ErrInvalidTransition
	}
	j.Status = models.JobStatusEnRoute
	if j.StartedAt == nil {
		j.StartedAt = &at
	}
	if etaMinutes != nil {
		j.ETAMinutes = etaMinutes
	}
	return nil
}

func (f *fakeJobRepo) MarkArrived(ctx context.Context, orgID, jobID string, at time.Time) error {
	j, ok := f.jobs[jobID]
	if !ok || (j.Status != models.JobStatusScheduled && j.Status != models.JobStatusEnRoute) {
		return models.ErrInvalidTransition
	}
	j.Status = models.JobStatusOnSite
	j.ArrivedAt = &at
	return nil
}

func (f *fakeJobRepo) MarkCompleted(ctx context.Context, orgID, jobID string, at time.Time) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return models.ErrInvalidTransition
	}
	j.Status = models.JobStatusCompleted
	j.CompletedAt = &at
	return nil
}

func (f *fakeJobRepo) MarkFailed(ctx context.Context, orgID, jobID, code, notes string) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return models.ErrInvalidTransition
	}
	j.Status = models.JobStatusFailed
	j.FailCode = &code
	return nil
}

func (f *fakeJobRepo) MarkCancelled(ctx context.Context, orgID, jobID, code, reason string) error {
	j, ok := f.jobs[jobID]
	if !ok || j.Terminal() {
		return models.ErrInvalidTransition
	}
	j.Status = models.JobStatusCancelled
	j.CancelCode = &code
	return nil
}

func (f *fakeJobRepo) FindCarer(ctx context.Context, orgID, carerID string) (*models.Carer, error) {
	c, ok := f.carers[carerID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeJobRepo) FindPool(ctx context.Context, orgID, poolID string) (*models.Pool, error) {
	p, ok := f.pools[poolID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeJobRepo) UpdateCarerLocation(ctx context.Context, orgID, carerID string, loc models.Location, at time.Time) error {
	if _, ok := f.carers[carerID]; !ok {
		return models.ErrNotFound
	}
	f.carerLocations[carerID] = loc
	return nil
}

func (f *fakeJobRepo) CreateReading(ctx context.Context, reading *models.Reading) error {
	cp := *reading
	f.readings = append(f.readings, &cp)
	cov := f.coverage[reading.JobID]
	cov.HasPH = cov.HasPH || reading.PH != nil
	cov.HasFreeChlorine = cov.HasFreeChlorine || reading.FreeChlorine != nil
	cov.HasAlkalinity = cov.HasAlkalinity || reading.Alkalinity != nil
	cov.HasTemperature = cov.HasTemperature || reading.TempCelsius != nil
	f.coverage[reading.JobID] = cov
	return nil
}

func (f *fakeJobRepo) ReadingCoverage(ctx context.Context, jobID string) (models.ReadingCoverage, error) {
	return f.coverage[jobID], nil
}

func (f *fakeJobRepo) ClientEmailForJob(ctx context.Context, orgID, jobID string) (string, error) {
	return "client@example.com", nil
}

func (f *fakeJobRepo) ManagerEmails(ctx context.Context, orgID string) ([]string, error) {
	return []string{"manager@example.com"}, nil
}

type fakeETA struct{ calls int }

func (f *fakeETA) RecalculateOne(ctx context.Context, orgID, jobID string) (*int, error) {
	f.calls++
	eta := 12
	return &eta, nil
}

// fakeDistance answers geofence checks with a fixed result or error.
type fakeDistance struct {
	result dispatch.DistanceResult
	err    error
	calls  int
}

func (f *fakeDistance) Distance(ctx context.Context, orgID string, origin, dest models.Location, mode string) (dispatch.DistanceResult, error) {
	f.calls++
	if f.err != nil {
		return dispatch.DistanceResult{}, f.err
	}
	return f.result, nil
}

// fakeNotifier signals each delivery on a channel so tests can wait for the
// detached goroutines.
type fakeNotifier struct{ events chan string }

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(chan string, 8)}
}

func (f *fakeNotifier) CarerAssigned(ctx context.Context, carer *models.Carer, job *models.Job) error {
	f.events <- "assigned:" + job.ID
	return nil
}

func (f *fakeNotifier) JobCompleted(ctx context.Context, job *models.Job) error {
	f.events <- "completed:" + job.ID
	return nil
}

func (f *fakeNotifier) ManagerWeatherAlert(ctx context.Context, job *models.Job, condition string) error {
	f.events <- "weather:" + condition
	return nil
}

type fakeInvoicer struct{ created chan string }

func newFakeInvoicer() *fakeInvoicer {
	return &fakeInvoicer{created: make(chan string, 8)}
}

func (f *fakeInvoicer) CreateForJob(ctx context.Context, job *models.Job) (*models.Invoice, error) {
	f.created <- job.ID
	return &models.Invoice{ID: "inv-1", JobID: &job.ID}, nil
}

func waitFor(t *testing.T, ch chan string, want string) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Errorf("side effect = %q; want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("timed out waiting for %q", want)
	}
}

type testEnv struct {
	repo     *fakeJobRepo
	eta      *fakeETA
	distance *fakeDistance
	notifier *fakeNotifier
	invoicer *fakeInvoicer
	svc      *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newFakeJobRepo(),
		eta:      &fakeETA{},
		distance: &fakeDistance{result: dispatch.DistanceResult{DistanceMeters: 40, DurationSeconds: 30}},
		notifier: newFakeNotifier(),
		invoicer: newFakeInvoicer(),
	}
	env.svc = NewService(env.repo, env.eta, env.distance, env.notifier, env.invoicer, 100)
	env.svc.now = func() time.Time { return testNow }

	lat, lng := 0.0, 0.0
	env.repo.pools["p1"] = &models.Pool{
		ID: "p1", OrgID: "org1", ClientID: "cl1", Name: "Backyard pool",
		Lat: &lat, Lng: &lng,
	}
	env.repo.carers["c1"] = &models.Carer{ID: "c1", OrgID: "org1", Name: "Pat", Email: "pat@example.com", Active: true}
	return env
}

func (e *testEnv) seedJob(id, status string, windowStart time.Time) *models.Job {
	carerID := "c1"
	job := &models.Job{
		ID: id, OrgID: "org1", PoolID: "p1",
		WindowStart: windowStart, WindowEnd: windowStart.Add(2 * time.Hour),
		Status: status, CarerID: &carerID,
	}
	e.repo.jobs[id] = job
	return job
}

func carerActor() Actor {
	id := "c1"
	return Actor{UserID: "u-carer", Role: models.RoleCarer, CarerID: &id}
}

func managerActor() Actor {
	return Actor{UserID: "u-mgr", Role: models.RoleManager}
}

func clientActor(clientID string) Actor {
	return Actor{UserID: "u-client", Role: models.RoleClient, ClientID: &clientID}
}

// ---- create ----

func TestCreateRejectsInvertedWindow(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Create(context.Background(), "org1", managerActor(), models.CreateJobRequest{
		PoolID:      "p1",
		WindowStart: testNow.Add(2 * time.Hour),
		WindowEnd:   testNow.Add(time.Hour),
	})
	if !errors.Is(err, models.ErrInvalidWindow) {
		t.Errorf("Create with inverted window = %v; want ErrInvalidWindow", err)
	}
}

func TestCreateRejectsNearDuplicate(t *testing.T) {
	env := newTestEnv()
	start := testNow.Add(time.Hour)
	env.seedJob("existing", models.JobStatusScheduled, start)

	_, err := env.svc.Create(context.Background(), "org1", managerActor(), models.CreateJobRequest{
		PoolID:      "p1",
		WindowStart: start.Add(3 * time.Second), // inside the 5s guard
		WindowEnd:   start.Add(2 * time.Hour),
	})
	if !errors.Is(err, models.ErrDuplicateJob) {
		t.Errorf("Create near-duplicate = %v; want ErrDuplicateJob", err)
	}
}

func TestCreateAllowsCancelledDuplicate(t *testing.T) {
	env := newTestEnv()
	start := testNow.Add(time.Hour)
	env.seedJob("cancelled", models.JobStatusCancelled, start)

	job, err := env.svc.Create(context.Background(), "org1", managerActor(), models.CreateJobRequest{
		PoolID:      "p1",
		WindowStart: start,
		WindowEnd:   start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create over cancelled job error: %v", err)
	}
	if job.Status != models.JobStatusScheduled {
		t.Errorf("new job status = %s; want scheduled", job.Status)
	}
}

// ---- start ----

func TestStartWithoutLocationSucceeds(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	// No location in the request and the pool has coordinates; starting is
	// not proximity-checked, only arrival is.
	job, err := env.svc.Start(context.Background(), "org1", carerActor(), "j1", models.StartJobRequest{})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if job.Status != models.JobStatusEnRoute {
		t.Errorf("status = %s; want en_route", job.Status)
	}
	if job.StartedAt == nil {
		t.Error("StartedAt not set")
	}
	if env.distance.calls != 0 {
		t.Errorf("distance provider called %d times on start; want 0", env.distance.calls)
	}
}

func TestStartUpdatesCarerLocation(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	loc := models.Location{Lat: 1.5, Lng: 2.5}
	if _, err := env.svc.Start(context.Background(), "org1", carerActor(), "j1", models.StartJobRequest{Location: &loc}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if got := env.repo.carerLocations["c1"]; got != loc {
		t.Errorf("carer location = %+v; want %+v", got, loc)
	}
}

func TestStartRejectsOtherDays(t *testing.T) {
	env := newTestEnv()
	env.seedJob("tomorrow", models.JobStatusScheduled, testNow.AddDate(0, 0, 1))

	_, err := env.svc.Start(context.Background(), "org1", carerActor(), "tomorrow", models.StartJobRequest{})
	if !errors.Is(err, models.ErrJobNotToday) {
		t.Errorf("Start on tomorrow's job = %v; want ErrJobNotToday", err)
	}
}

func TestStartRequiresAssignedCarer(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	other := "c2"
	actor := Actor{UserID: "u-other", Role: models.RoleCarer, CarerID: &other}
	_, err := env.svc.Start(context.Background(), "org1", actor, "j1", models.StartJobRequest{})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Start by unassigned carer = %v; want ErrForbidden", err)
	}
}

func TestStartFromTerminalStatusRejected(t *testing.T) {
	env := newTestEnv()
	env.seedJob("done", models.JobStatusCompleted, testNow.Add(time.Hour))

	_, err := env.svc.Start(context.Background(), "org1", carerActor(), "done", models.StartJobRequest{})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Start on completed job = %v; want ErrInvalidTransition", err)
	}
}

// ---- arrive ----

func TestArriveRejectsOtherDays(t *testing.T) {
	env := newTestEnv()
	env.seedJob("tomorrow", models.JobStatusEnRoute, testNow.AddDate(0, 0, 1))

	loc := models.Location{Lat: 0.0005, Lng: 0}
	_, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "tomorrow", models.ArriveJobRequest{Location: &loc})
	if !errors.Is(err, models.ErrJobNotToday) {
		t.Errorf("Arrive on tomorrow's job = %v; want ErrJobNotToday", err)
	}
}

func TestArriveRequiresLocationWhenPoolHasCoordinates(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))

	_, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j1", models.ArriveJobRequest{})
	if !errors.Is(err, models.ErrLocationRequired) {
		t.Errorf("Arrive without location = %v; want ErrLocationRequired", err)
	}
}

func TestArriveWithinGeofence(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))
	env.distance.result = dispatch.DistanceResult{DistanceMeters: 80, DurationSeconds: 60}

	loc := models.Location{Lat: 0.0005, Lng: 0}
	job, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j1", models.ArriveJobRequest{Location: &loc})
	if err != nil {
		t.Fatalf("Arrive error: %v", err)
	}
	if job.Status != models.JobStatusOnSite {
		t.Errorf("status = %s; want on_site", job.Status)
	}
	if job.ArrivedAt == nil {
		t.Error("ArrivedAt not set")
	}
}

func TestArriveOutsideGeofence(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))
	env.distance.result = dispatch.DistanceResult{DistanceMeters: 450, DurationSeconds: 300}

	loc := models.Location{Lat: 0.003, Lng: 0}
	_, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j1", models.ArriveJobRequest{Location: &loc})
	if !errors.Is(err, models.ErrOutsideGeofence) {
		t.Errorf("Arrive outside geofence = %v; want ErrOutsideGeofence", err)
	}
	if env.repo.jobs["j1"].Status != models.JobStatusEnRoute {
		t.Errorf("status mutated to %s on rejected arrival", env.repo.jobs["j1"].Status)
	}
}

func TestArriveGeofenceFallsBackToHaversine(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))
	env.distance.err = errors.New("provider down")

	// ~55 m from the pool: inside the 100 m radius by great-circle distance.
	near := models.Location{Lat: 0.0005, Lng: 0}
	if _, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j1", models.ArriveJobRequest{Location: &near}); err != nil {
		t.Fatalf("Arrive with provider down error: %v", err)
	}

	// ~550 m away: rejected by the same fallback.
	env.seedJob("j2", models.JobStatusEnRoute, testNow.Add(time.Hour))
	far := models.Location{Lat: 0.005, Lng: 0}
	_, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j2", models.ArriveJobRequest{Location: &far})
	if !errors.Is(err, models.ErrOutsideGeofence) {
		t.Errorf("far arrival with provider down = %v; want ErrOutsideGeofence", err)
	}
}

func TestArriveSkipsGeofenceForUnlocatedPool(t *testing.T) {
	env := newTestEnv()
	env.repo.pools["p2"] = &models.Pool{ID: "p2", OrgID: "org1", ClientID: "cl1", Name: "No coords"}
	job := env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))
	job.PoolID = "p2"

	got, err := env.svc.Arrive(context.Background(), "org1", carerActor(), "j1", models.ArriveJobRequest{})
	if err != nil {
		t.Fatalf("Arrive at unlocated pool error: %v", err)
	}
	if got.Status != models.JobStatusOnSite {
		t.Errorf("status = %s; want on_site", got.Status)
	}
}

// ---- complete ----

func TestCompleteRequiresFullReadings(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusOnSite, testNow.Add(time.Hour))
	// Only pH recorded.
	env.repo.coverage["j1"] = models.ReadingCoverage{HasPH: true}

	_, err := env.svc.Complete(context.Background(), "org1", carerActor(), "j1")
	if !errors.Is(err, models.ErrReadingsIncomplete) {
		t.Errorf("Complete with partial readings = %v; want ErrReadingsIncomplete", err)
	}
	if env.repo.jobs["j1"].Status != models.JobStatusOnSite {
		t.Errorf("status mutated to %s on rejected completion", env.repo.jobs["j1"].Status)
	}
}

func TestCompleteFiresInvoiceAndNotification(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusOnSite, testNow.Add(time.Hour))
	env.repo.coverage["j1"] = models.ReadingCoverage{
		HasPH: true, HasFreeChlorine: true, HasAlkalinity: true, HasTemperature: true,
	}

	job, err := env.svc.Complete(context.Background(), "org1", carerActor(), "j1")
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s; want completed", job.Status)
	}
	waitFor(t, env.invoicer.created, "j1")
	waitFor(t, env.notifier.events, "completed:j1")
}

func TestCompleteAutoPromotesFromEnRoute(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusEnRoute, testNow.Add(time.Hour))
	env.repo.coverage["j1"] = models.ReadingCoverage{
		HasPH: true, HasFreeChlorine: true, HasAlkalinity: true, HasTemperature: true,
	}

	job, err := env.svc.Complete(context.Background(), "org1", carerActor(), "j1")
	if err != nil {
		t.Fatalf("Complete from en_route error: %v", err)
	}
	if job.Status != models.JobStatusCompleted {
		t.Errorf("status = %s; want completed", job.Status)
	}
	waitFor(t, env.invoicer.created, "j1")
}

// ---- readings ----

func TestAddReadingBuildsCoverage(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusOnSite, testNow.Add(time.Hour))

	ph, cl, alk, temp := 7.4, 1.5, 110.0, 27.0
	samples := []models.CreateReadingRequest{
		{PH: &ph, FreeChlorine: &cl},
		{Alkalinity: &alk, TempCelsius: &temp},
	}
	for _, s := range samples {
		if _, err := env.svc.AddReading(context.Background(), "org1", carerActor(), "j1", s); err != nil {
			t.Fatalf("AddReading error: %v", err)
		}
	}

	cov, _ := env.repo.ReadingCoverage(context.Background(), "j1")
	if !cov.Complete() {
		t.Errorf("coverage after two samples = %+v; want complete", cov)
	}
	// The union across samples satisfies the completion gate.
	if _, err := env.svc.Complete(context.Background(), "org1", carerActor(), "j1"); err != nil {
		t.Errorf("Complete after spread readings error: %v", err)
	}
}

func TestAddReadingRejectedOnTerminalJob(t *testing.T) {
	env := newTestEnv()
	env.seedJob("done", models.JobStatusCompleted, testNow.Add(time.Hour))

	ph := 7.0
	_, err := env.svc.AddReading(context.Background(), "org1", carerActor(), "done", models.CreateReadingRequest{PH: &ph})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("AddReading on completed job = %v; want ErrInvalidTransition", err)
	}
}

// ---- cancel / fail / weather ----

func TestCancelByManager(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	job, err := env.svc.Cancel(context.Background(), "org1", managerActor(), "j1", models.CancelJobRequest{Code: models.CancelCodeAdmin})
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("status = %s; want cancelled", job.Status)
	}
}

func TestCancelByOwningClient(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	job, err := env.svc.Cancel(context.Background(), "org1", clientActor("cl1"), "j1", models.CancelJobRequest{Code: models.CancelCodeClient})
	if err != nil {
		t.Fatalf("Cancel by owning client error: %v", err)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("status = %s; want cancelled", job.Status)
	}
}

func TestCancelByOtherClientForbidden(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	_, err := env.svc.Cancel(context.Background(), "org1", clientActor("cl-other"), "j1", models.CancelJobRequest{Code: models.CancelCodeClient})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Cancel by other client = %v; want ErrForbidden", err)
	}
}

func TestCancelCompletedJobRejected(t *testing.T) {
	env := newTestEnv()
	env.seedJob("done", models.JobStatusCompleted, testNow.Add(time.Hour))

	_, err := env.svc.Cancel(context.Background(), "org1", managerActor(), "done", models.CancelJobRequest{Code: models.CancelCodeAdmin})
	if !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("Cancel completed job = %v; want ErrInvalidTransition", err)
	}
}

func TestFailRecordsCode(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusOnSite, testNow.Add(time.Hour))

	job, err := env.svc.Fail(context.Background(), "org1", carerActor(), "j1", models.FailJobRequest{Code: "no_access"})
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if job.Status != models.JobStatusFailed {
		t.Errorf("status = %s; want failed", job.Status)
	}
	if job.FailCode == nil || *job.FailCode != "no_access" {
		t.Errorf("FailCode = %v; want no_access", job.FailCode)
	}
}

func TestWeatherReportCancelsAndAlerts(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	job, err := env.svc.ReportWeather(context.Background(), "org1", carerActor(), "j1", models.WeatherReportRequest{Condition: "thunderstorm"})
	if err != nil {
		t.Fatalf("ReportWeather error: %v", err)
	}
	if job.Status != models.JobStatusCancelled {
		t.Errorf("status = %s; want cancelled", job.Status)
	}
	if job.CancelCode == nil || *job.CancelCode != models.CancelCodeWeather {
		t.Errorf("CancelCode = %v; want weather", job.CancelCode)
	}
	waitFor(t, env.notifier.events, "weather:thunderstorm")
}

// ---- assign ----

func TestAssignNotifiesCarer(t *testing.T) {
	env := newTestEnv()
	job := env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))
	job.CarerID = nil

	got, err := env.svc.Assign(context.Background(), "org1", managerActor(), "j1", models.AssignJobRequest{CarerID: "c1"})
	if err != nil {
		t.Fatalf("Assign error: %v", err)
	}
	if got.CarerID == nil || *got.CarerID != "c1" {
		t.Errorf("CarerID = %v; want c1", got.CarerID)
	}
	if env.eta.calls != 1 {
		t.Errorf("ETA recalculated %d times; want 1", env.eta.calls)
	}
	waitFor(t, env.notifier.events, "assigned:j1")
}

func TestAssignRequiresElevatedRole(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	_, err := env.svc.Assign(context.Background(), "org1", carerActor(), "j1", models.AssignJobRequest{CarerID: "c1"})
	if !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Assign by carer = %v; want ErrForbidden", err)
	}
}

func TestAssignInactiveCarerRejected(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))
	env.repo.carers["c2"] = &models.Carer{ID: "c2", OrgID: "org1", Active: false}

	_, err := env.svc.Assign(context.Background(), "org1", managerActor(), "j1", models.AssignJobRequest{CarerID: "c2"})
	if !errors.Is(err, models.ErrInvalidRequest) {
		t.Errorf("Assign inactive carer = %v; want ErrInvalidRequest", err)
	}
}

// ---- reschedule ----

func TestRescheduleMovesWindowAndRecomputesETA(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	newStart := testNow.AddDate(0, 0, 2).Truncate(time.Hour)
	job, err := env.svc.Reschedule(context.Background(), "org1", managerActor(), "j1", models.RescheduleJobRequest{
		WindowStart: newStart,
		WindowEnd:   newStart.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if !job.WindowStart.Equal(newStart) {
		t.Errorf("WindowStart = %v; want %v", job.WindowStart, newStart)
	}
	if env.eta.calls != 1 {
		t.Errorf("ETA recalculated %d times; want 1", env.eta.calls)
	}
}

func TestRescheduleRejectsInvertedWindow(t *testing.T) {
	env := newTestEnv()
	env.seedJob("j1", models.JobStatusScheduled, testNow.Add(time.Hour))

	_, err := env.svc.Reschedule(context.Background(), "org1", managerActor(), "j1", models.RescheduleJobRequest{
		WindowStart: testNow.Add(3 * time.Hour),
		WindowEnd:   testNow.Add(2 * time.Hour),
	})
	if !errors.Is(err, models.ErrInvalidWindow) {
		t.Errorf("Reschedule inverted window = %v; want ErrInvalidWindow", err)
	}
}

// ---- carer location ----

func TestUpdateMyLocation(t *testing.T) {
	env := newTestEnv()

	loc := models.Location{Lat: 3.3, Lng: 4.4}
	if err := env.svc.UpdateMyLocation(context.Background(), "org1", carerActor(), models.UpdateLocationRequest{Location: loc}); err != nil {
		t.Fatalf("UpdateMyLocation error: %v", err)
	}
	if got := env.repo.carerLocations["c1"]; got != loc {
		t.Errorf("stored location = %+v; want %+v", got, loc)
	}

	// Accounts without a carer link cannot post positions.
	if err := env.svc.UpdateMyLocation(context.Background(), "org1", managerActor(), models.UpdateLocationRequest{Location: loc}); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("UpdateMyLocation by manager = %v; want ErrForbidden", err)
	}
}

// ---- listing visibility ----

func TestListPinsCarersToOwnJobs(t *testing.T) {
	env := newTestEnv()
	env.seedJob("mine", models.JobStatusScheduled, testNow.Add(time.Hour))
	other := "c2"
	otherJob := env.seedJob("theirs", models.JobStatusScheduled, testNow.Add(time.Hour))
	otherJob.CarerID = &other

	list, _, err := env.svc.List(context.Background(), "org1", carerActor(), ListFilter{CarerID: "c2"})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	for _, j := range list {
		if j.ID != "mine" {
			t.Errorf("carer listing leaked job %s", j.ID)
		}
	}
}

func TestGetHidesOtherCarersJobs(t *testing.T) {
	env := newTestEnv()
	other := "c2"
	job := env.seedJob("theirs", models.JobStatusScheduled, testNow.Add(time.Hour))
	job.CarerID = &other

	_, err := env.svc.Get(context.Background(), "org1", carerActor(), "theirs")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Get another carer's job = %v; want ErrNotFound", err)
	}
}
