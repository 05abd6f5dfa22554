package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/example/washops/backend/internal/appstate"
	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/backend/backendtest"
	"github.com/example/washops/backend/internal/db"
	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/mq"
	"github.com/example/washops/backend/internal/repository"
)

type published struct {
	key string
	msg mq.JobEventMessage
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []published
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	msg, _ := payload.(mq.JobEventMessage)
	p.sent = append(p.sent, published{key: routingKey, msg: msg})
	return nil
}

func (p *recordingPublisher) messages() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.sent...)
}

type acker struct {
	acked, nacked int
}

func (a *acker) Ack(tag uint64, multiple bool) error { a.acked++; return nil }

func (a *acker) Nack(tag uint64, multiple, requeue bool) error { a.nacked++; return nil }

func (a *acker) Reject(tag uint64, requeue bool) error { a.nacked++; return nil }

type fixture struct {
	svc       *ConsoleService
	backend   *backendtest.Server
	publisher *recordingPublisher
	events    *repository.JobEventRepository
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	gdb, err := db.New("file:"+t.Name()+"?mode=memory&cache=shared", false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	fake := backendtest.New()
	t.Cleanup(fake.Close)

	if opts.Instance == "" {
		opts.Instance = "console-a"
	}
	if opts.IdleTTL == 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	pub := &recordingPublisher{}
	events := repository.NewJobEventRepository(gdb)
	svc := NewConsoleService(
		appstate.NewStore(repository.NewSessionRepository(gdb)),
		events,
		backend.NewClient(fake.URL, time.Second),
		pub,
		opts,
	)
	return &fixture{svc: svc, backend: fake, publisher: pub, events: events}
}

func (f *fixture) login(t *testing.T) *models.ConsoleSession {
	t.Helper()
	session, err := f.svc.Login(context.Background(), appstate.Login{UserID: 7, ShopID: 1, AccessToken: "tok-7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return session
}

func pendingJob(id int64) models.Job {
	return models.Job{
		ID:       id,
		Customer: models.Customer{ID: backendtest.CustomerJane, FirstName: "Jane", LastName: "Doe"},
		Car:      models.Car{ID: backendtest.CarJaneCorolla, PlateNumber: "AA-12345"},
		Status:   models.JobStatusPending,
		Items: []models.JobItem{
			{ID: 11, Job: id, Service: models.Service{ID: backendtest.ServiceExterior, Name: "Exterior Wash"}, Price: decimal.NewFromInt(250)},
		},
	}
}

func TestRegistryIsolatesSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	reg := newRegistry[int64, string](func() time.Time { return now })
	a, b := uuid.New(), uuid.New()

	reg.put(a, 1, "a1")
	reg.put(b, 1, "b1")
	if v, ok := reg.get(a, 1); !ok || v != "a1" {
		t.Fatalf("get a: %q %v", v, ok)
	}
	if _, ok := reg.get(b, 2); ok {
		t.Fatalf("unknown id must miss")
	}

	var seen []string
	reg.each(1, func(v string) { seen = append(seen, v) })
	if len(seen) != 2 {
		t.Fatalf("each must visit both sessions, got %v", seen)
	}

	if n := reg.dropSession(a); n != 1 || reg.size() != 1 {
		t.Fatalf("drop session: %d left %d", n, reg.size())
	}

	now = now.Add(time.Hour)
	reg.put(a, 3, "fresh")
	if n := reg.sweep(now.Add(-time.Minute)); n != 1 {
		t.Fatalf("sweep dropped %d", n)
	}
	if _, ok := reg.get(a, 3); !ok {
		t.Fatalf("fresh entry must survive")
	}
}

func TestStatusChangeIsJournaledAndPublished(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.PutJob(pendingJob(1))
	session := f.login(t)
	ctx := context.Background()

	tracker, err := f.svc.Job(ctx, session, 1)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if _, err := tracker.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	events, err := f.svc.JobEvents(ctx, 1)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(events))
	}
	e := events[0]
	if e.Kind != models.JobEventStatusChanged || e.FromStatus != "PENDING" || e.ToStatus != "IN_PROGRESS" || e.SessionID != session.ID {
		t.Fatalf("unexpected event %+v", e)
	}
	var snapshot models.Job
	if err := json.Unmarshal(e.Snapshot, &snapshot); err != nil || snapshot.Status != models.JobStatusInProgress {
		t.Fatalf("snapshot %s: %v", e.Snapshot, err)
	}

	sent := f.publisher.messages()
	if len(sent) != 1 || sent[0].key != "job.status_changed" {
		t.Fatalf("unexpected publications %+v", sent)
	}
	if sent[0].msg.Origin != "console-a" || sent[0].msg.JobID != 1 || sent[0].msg.To != "IN_PROGRESS" {
		t.Fatalf("unexpected message %+v", sent[0].msg)
	}
	for _, tok := range f.backend.Tokens() {
		if tok != "tok-7" {
			t.Fatalf("requests must carry the session token, got %q", tok)
		}
	}
}

func TestJobMirrorIsReusedPerSession(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.PutJob(pendingJob(1))
	ctx := context.Background()
	first, second := f.login(t), f.login(t)

	a, err := f.svc.Job(ctx, first, 1)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	again, err := f.svc.Job(ctx, first, 1)
	if err != nil || again != a {
		t.Fatalf("same session must reuse its mirror")
	}
	b, err := f.svc.Job(ctx, second, 1)
	if err != nil || b == a {
		t.Fatalf("sessions must not share mirrors")
	}
	if got := f.backend.Calls("GET /jobs/:id/"); got != 2 {
		t.Fatalf("expected one load per session, got %d", got)
	}
}

func TestUnknownJobIsNotRegistered(t *testing.T) {
	f := newFixture(t, Options{})
	session := f.login(t)

	_, err := f.svc.Job(context.Background(), session, 404)
	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || !apiErr.NotFound() {
		t.Fatalf("expected backend 404, got %v", err)
	}
	if f.svc.jobs.size() != 0 {
		t.Fatalf("failed load must not leave a mirror behind")
	}
}

func TestLogoutReleasesSessionState(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.PutJob(pendingJob(1))
	session := f.login(t)
	ctx := context.Background()

	obID, _, err := f.svc.StartOnboarding(ctx, session, "new", 0)
	if err != nil {
		t.Fatalf("start onboarding: %v", err)
	}
	jwID, _ := f.svc.StartJobWizard(session)
	if _, err := f.svc.Job(ctx, session, 1); err != nil {
		t.Fatalf("job: %v", err)
	}

	if err := f.svc.Logout(ctx, session.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.svc.Onboarding(session.ID, obID); !errors.Is(err, ErrWizardNotFound) {
		t.Fatalf("onboarding must be released, got %v", err)
	}
	if _, err := f.svc.JobWizard(session.ID, jwID); !errors.Is(err, ErrWizardNotFound) {
		t.Fatalf("job wizard must be released, got %v", err)
	}
	if f.svc.jobs.size() != 0 {
		t.Fatalf("job mirrors must be released")
	}
	if _, err := f.svc.Session(ctx, session.ID); !errors.Is(err, appstate.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestWizardsAreScopedToTheirSession(t *testing.T) {
	f := newFixture(t, Options{})
	owner, other := f.login(t), f.login(t)
	id, _ := f.svc.StartJobWizard(owner)

	if _, err := f.svc.JobWizard(other.ID, id); !errors.Is(err, ErrWizardNotFound) {
		t.Fatalf("foreign session must not see the wizard, got %v", err)
	}
	if err := f.svc.DiscardJobWizard(other.ID, id); !errors.Is(err, ErrWizardNotFound) {
		t.Fatalf("foreign session must not discard the wizard, got %v", err)
	}
	if err := f.svc.DiscardJobWizard(owner.ID, id); err != nil {
		t.Fatalf("discard: %v", err)
	}
}

func TestSweepReleasesIdleState(t *testing.T) {
	f := newFixture(t, Options{IdleTTL: 10 * time.Minute})
	session := f.login(t)
	f.svc.StartJobWizard(session)

	clock := time.Now().UTC().Add(time.Hour)
	f.svc.now = func() time.Time { return clock }

	res, err := f.svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.JobWizards != 1 || res.Sessions != 1 {
		t.Fatalf("unexpected sweep result %+v", res)
	}
	if _, err := f.svc.Session(context.Background(), session.ID); !errors.Is(err, appstate.ErrNoSession) {
		t.Fatalf("idle session must end, got %v", err)
	}
}

func TestDeliveryFromAnotherInstanceRefreshesMirrors(t *testing.T) {
	f := newFixture(t, Options{})
	f.backend.PutJob(pendingJob(1))
	session := f.login(t)
	ctx := context.Background()

	tracker, err := f.svc.Job(ctx, session, 1)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	f.backend.SetJobStatus(1, models.JobStatusInProgress)

	own, _ := json.Marshal(mq.JobEventMessage{Event: "job.status_changed", Origin: "console-a", JobID: 1})
	ack := &acker{}
	f.svc.HandleDelivery(amqp091.Delivery{Acknowledger: ack, Body: own})
	if tracker.Job().Status != models.JobStatusPending {
		t.Fatalf("own events must not trigger a refresh")
	}

	foreign, _ := json.Marshal(mq.JobEventMessage{Event: "job.status_changed", Origin: "console-b", JobID: 1})
	f.svc.HandleDelivery(amqp091.Delivery{Acknowledger: ack, Body: foreign})
	if tracker.Job().Status != models.JobStatusInProgress {
		t.Fatalf("mirror must follow the other instance, got %s", tracker.Job().Status)
	}

	f.svc.HandleDelivery(amqp091.Delivery{Acknowledger: ack, Body: []byte(`{"event":"job.status_changed"}`)})
	if ack.acked != 2 || ack.nacked != 1 {
		t.Fatalf("acked %d nacked %d", ack.acked, ack.nacked)
	}
}

func TestCancelFollowsConfiguration(t *testing.T) {
	ctx := context.Background()

	disabled := newFixture(t, Options{})
	disabled.backend.PutJob(pendingJob(1))
	tracker, err := disabled.svc.Job(ctx, disabled.login(t), 1)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	if _, err := tracker.Cancel(ctx); !errors.Is(err, lifecycle.ErrCancellationDisabled) {
		t.Fatalf("expected ErrCancellationDisabled, got %v", err)
	}
	if disabled.svc.CancellationEnabled() {
		t.Fatalf("cancellation must default to off")
	}
}
