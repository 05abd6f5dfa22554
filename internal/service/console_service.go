package service

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
	"gorm.io/datatypes"

	"github.com/example/washops/backend/internal/appstate"
	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/export"
	"github.com/example/washops/backend/internal/jobwizard"
	"github.com/example/washops/backend/internal/lifecycle"
	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/mq"
	"github.com/example/washops/backend/internal/onboarding"
	"github.com/example/washops/backend/internal/repository"
)

// ErrWizardNotFound is returned for unknown or foreign wizard ids.
var ErrWizardNotFound = errors.New("wizard not found")

// Options configures the console service.
type Options struct {
	Instance       string
	SearchDebounce time.Duration
	AllowCancel    bool
	IdleTTL        time.Duration
}

// ConsoleService owns the wizards and job mirrors of every session and bridges
// confirmed lifecycle changes to the journal and the message bus.
type ConsoleService struct {
	sessions *appstate.Store
	events   *repository.JobEventRepository
	backend  *backend.Client
	mq       mq.Publisher
	opts     Options
	now      func() time.Time

	onboardings *registry[uuid.UUID, *onboarding.Wizard]
	jobWizards  *registry[uuid.UUID, *jobwizard.Wizard]
	jobs        *registry[int64, *lifecycle.Tracker]
}

// NewConsoleService builds a service with dependencies. publisher may be nil.
func NewConsoleService(sessions *appstate.Store, events *repository.JobEventRepository, client *backend.Client, publisher mq.Publisher, opts Options) *ConsoleService {
	if opts.Instance == "" {
		opts.Instance = uuid.New().String()
	}
	now := func() time.Time { return time.Now().UTC() }
	s := &ConsoleService{
		sessions:    sessions,
		events:      events,
		backend:     client,
		mq:          publisher,
		opts:        opts,
		now:         now,
		onboardings: newRegistry[uuid.UUID, *onboarding.Wizard](now),
		jobWizards:  newRegistry[uuid.UUID, *jobwizard.Wizard](now),
		jobs:        newRegistry[int64, *lifecycle.Tracker](now),
	}
	sessions.OnEnd(s.release)
	return s
}

// CancellationEnabled reports whether jobs may be cancelled from the console.
func (s *ConsoleService) CancellationEnabled() bool { return s.opts.AllowCancel }

// Login starts an application session.
func (s *ConsoleService) Login(ctx context.Context, login appstate.Login) (*models.ConsoleSession, error) {
	session, err := s.sessions.Begin(ctx, login)
	if err != nil {
		return nil, err
	}
	log.Printf("session %s started for user %d", session.ID, session.UserID)
	return session, nil
}

// Logout ends the session and releases everything it owns.
func (s *ConsoleService) Logout(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.sessions.End(ctx, sessionID); err != nil {
		return err
	}
	log.Printf("session %s ended", sessionID)
	return nil
}

// Session returns the session and records activity on it.
func (s *ConsoleService) Session(ctx context.Context, sessionID uuid.UUID) (*models.ConsoleSession, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Touch(ctx, sessionID); err != nil {
		log.Printf("touch session %s failed: %v", sessionID, err)
	}
	return session, nil
}

// SetUnreadNotifications updates the session's notification counter.
func (s *ConsoleService) SetUnreadNotifications(ctx context.Context, sessionID uuid.UUID, count int) error {
	return s.sessions.SetUnreadNotifications(ctx, sessionID, count)
}

func (s *ConsoleService) release(sessionID uuid.UUID) {
	n := s.onboardings.dropSession(sessionID) + s.jobWizards.dropSession(sessionID) + s.jobs.dropSession(sessionID)
	if n > 0 {
		log.Printf("released %d wizards and job mirrors of session %s", n, sessionID)
	}
}

func (s *ConsoleService) client(session *models.ConsoleSession) *backend.Client {
	return s.backend.WithToken(session.AccessToken)
}

// StartOnboarding creates an onboarding wizard in the named mode and loads
// its reference and prefill data.
func (s *ConsoleService) StartOnboarding(ctx context.Context, session *models.ConsoleSession, mode string, customerID int64) (uuid.UUID, *onboarding.Wizard, error) {
	m, err := onboarding.ParseMode(mode, customerID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	w := onboarding.New(m, s.client(session))
	if err := w.Load(ctx); err != nil {
		return uuid.Nil, nil, err
	}
	id := uuid.New()
	s.onboardings.put(session.ID, id, w)
	return id, w, nil
}

// Onboarding returns a wizard owned by the session.
func (s *ConsoleService) Onboarding(sessionID, id uuid.UUID) (*onboarding.Wizard, error) {
	w, ok := s.onboardings.get(sessionID, id)
	if !ok {
		return nil, ErrWizardNotFound
	}
	return w, nil
}

// DiscardOnboarding drops a wizard.
func (s *ConsoleService) DiscardOnboarding(sessionID, id uuid.UUID) error {
	if !s.onboardings.remove(sessionID, id) {
		return ErrWizardNotFound
	}
	return nil
}

// StartJobWizard creates a job creation wizard.
func (s *ConsoleService) StartJobWizard(session *models.ConsoleSession) (uuid.UUID, *jobwizard.Wizard) {
	w := jobwizard.New(s.client(session), s.opts.SearchDebounce)
	id := uuid.New()
	s.jobWizards.put(session.ID, id, w)
	return id, w
}

// JobWizard returns a job wizard owned by the session.
func (s *ConsoleService) JobWizard(sessionID, id uuid.UUID) (*jobwizard.Wizard, error) {
	w, ok := s.jobWizards.get(sessionID, id)
	if !ok {
		return nil, ErrWizardNotFound
	}
	return w, nil
}

// DiscardJobWizard drops a job wizard.
func (s *ConsoleService) DiscardJobWizard(sessionID, id uuid.UUID) error {
	if !s.jobWizards.remove(sessionID, id) {
		return ErrWizardNotFound
	}
	return nil
}

// Job returns the session's mirror of a job, loading it on first use.
func (s *ConsoleService) Job(ctx context.Context, session *models.ConsoleSession, jobID int64) (*lifecycle.Tracker, error) {
	sessionID := session.ID
	t, created := s.jobs.getOrPut(sessionID, jobID, func() *lifecycle.Tracker {
		return lifecycle.NewTracker(jobID, s.client(session), lifecycle.Options{
			AllowCancel: s.opts.AllowCancel,
			Recorder: lifecycle.RecorderFunc(func(ctx context.Context, e lifecycle.Event) {
				s.record(ctx, sessionID, e)
			}),
		})
	})
	if !created && t.Job() != nil {
		return t, nil
	}
	if err := t.Load(ctx); err != nil {
		s.jobs.remove(sessionID, jobID)
		return nil, err
	}
	return t, nil
}

// CloseJob drops the session's mirror of a job.
func (s *ConsoleService) CloseJob(sessionID uuid.UUID, jobID int64) {
	s.jobs.remove(sessionID, jobID)
}

// ListJobs returns jobs matching filter.
func (s *ConsoleService) ListJobs(ctx context.Context, session *models.ConsoleSession, filter models.JobFilter) ([]models.Job, error) {
	jobs, err := s.client(session).ListJobs(ctx, filter)
	return jobs, errors.Wrap(err, "list jobs")
}

// ExportJobs writes the job history matching filter as XLSX.
func (s *ConsoleService) ExportJobs(ctx context.Context, session *models.ConsoleSession, filter models.JobFilter, w io.Writer) error {
	jobs, err := s.ListJobs(ctx, session, filter)
	if err != nil {
		return err
	}
	return export.WriteJobs(w, jobs)
}

// JobEvents returns the journal of a job.
func (s *ConsoleService) JobEvents(ctx context.Context, jobID int64) ([]models.JobEvent, error) {
	return s.events.ListByJob(ctx, jobID, 0)
}

// CarMakes returns the car make catalog.
func (s *ConsoleService) CarMakes(ctx context.Context, session *models.ConsoleSession) ([]models.CarMake, error) {
	makes, err := s.client(session).CarMakes(ctx)
	return makes, errors.Wrap(err, "list car makes")
}

// CarModels returns the models of one make.
func (s *ConsoleService) CarModels(ctx context.Context, session *models.ConsoleSession, makeID int64) ([]models.CarModel, error) {
	list, err := s.client(session).ModelsForMake(ctx, makeID)
	return list, errors.Wrapf(err, "list models of make %d", makeID)
}

// ActiveServices returns the active service catalog.
func (s *ConsoleService) ActiveServices(ctx context.Context, session *models.ConsoleSession) ([]models.Service, error) {
	list, err := s.client(session).ActiveServices(ctx)
	return list, errors.Wrap(err, "list services")
}

// ActiveStaff returns the active staff list.
func (s *ConsoleService) ActiveStaff(ctx context.Context, session *models.ConsoleSession) ([]models.Staff, error) {
	list, err := s.client(session).ActiveStaff(ctx)
	return list, errors.Wrap(err, "list staff")
}

func (s *ConsoleService) record(ctx context.Context, sessionID uuid.UUID, e lifecycle.Event) {
	ctx = context.WithoutCancel(ctx)

	var snapshot any
	switch {
	case e.Job != nil:
		snapshot = e.Job
	case e.Task != nil:
		snapshot = e.Task
	case e.Item != nil:
		snapshot = e.Item
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		log.Printf("encode %s snapshot failed: %v", e.Kind, err)
		body = []byte("null")
	}

	event := &models.JobEvent{
		SessionID:  sessionID,
		JobID:      e.JobID,
		TaskID:     e.TaskID,
		Kind:       e.Kind,
		FromStatus: e.From,
		ToStatus:   e.To,
		Snapshot:   datatypes.JSON(body),
		CreatedAt:  s.now(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		log.Printf("journal %s for job %d failed: %v", e.Kind, e.JobID, err)
	}
	if err := s.publishEvent(ctx, event); err != nil {
		log.Printf("publish %s failed: %v", e.Kind, err)
	}
}

func (s *ConsoleService) publishEvent(ctx context.Context, event *models.JobEvent) error {
	if s.mq == nil {
		return nil
	}
	return s.mq.Publish(ctx, string(event.Kind), mq.JobEventMessage{
		Event:      string(event.Kind),
		Origin:     s.opts.Instance,
		SessionID:  event.SessionID.String(),
		JobID:      event.JobID,
		TaskID:     event.TaskID,
		From:       event.FromStatus,
		To:         event.ToStatus,
		OccurredAt: event.CreatedAt.Format(time.RFC3339),
	})
}

// HandleDelivery refreshes local mirrors of a job changed by another console
// instance.
func (s *ConsoleService) HandleDelivery(d amqp091.Delivery) {
	msg, err := mq.DecodeJobEvent(d.Body)
	if err != nil {
		log.Printf("drop job event: %v", err)
		if err := d.Nack(false, false); err != nil {
			log.Printf("nack job event: %v", err)
		}
		return
	}
	if msg.Origin != s.opts.Instance {
		s.RefreshJob(context.Background(), msg.JobID)
	}
	if err := d.Ack(false); err != nil {
		log.Printf("ack job event: %v", err)
	}
}

// RefreshJob reloads every session's mirror of a job.
func (s *ConsoleService) RefreshJob(ctx context.Context, jobID int64) {
	s.jobs.each(jobID, func(t *lifecycle.Tracker) {
		if err := t.Load(ctx); err != nil {
			log.Printf("refresh job %d failed: %v", jobID, err)
		}
	})
}

// SweepResult counts what one Sweep released.
type SweepResult struct {
	Onboardings int
	JobWizards  int
	Jobs        int
	Sessions    int
}

// Sweep releases wizards and job mirrors untouched for longer than the idle
// TTL and ends idle sessions.
func (s *ConsoleService) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := s.now().Add(-s.opts.IdleTTL)
	res := SweepResult{
		Onboardings: s.onboardings.sweep(cutoff),
		JobWizards:  s.jobWizards.sweep(cutoff),
		Jobs:        s.jobs.sweep(cutoff),
	}
	idle, err := s.sessions.Idle(ctx, cutoff)
	if err != nil {
		return res, err
	}
	for _, id := range idle {
		if err := s.sessions.End(ctx, id); err != nil {
			log.Printf("end idle session %s failed: %v", id, err)
			continue
		}
		res.Sessions++
	}
	return res, nil
}
