package lifecycle

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/models"
)

var (
	ErrInFlight             = errors.New("lifecycle: request already in flight")
	ErrNotLoaded            = errors.New("lifecycle: job not loaded")
	ErrJobClosed            = errors.New("lifecycle: job is closed")
	ErrUnknownItem          = errors.New("lifecycle: unknown job item")
	ErrUnknownTask          = errors.New("lifecycle: unknown task")
	ErrStaffRequired        = errors.New("lifecycle: staff member is required")
	ErrServiceRequired      = errors.New("lifecycle: service is required")
	ErrCancellationDisabled = errors.New("lifecycle: job cancellation is disabled")
	ErrNotInQC              = errors.New("lifecycle: checklist is only available in QC")
)

// JobStore is the part of the system of record that owns jobs and tasks.
type JobStore interface {
	GetJob(ctx context.Context, id int64) (*models.Job, error)
	UpdateJob(ctx context.Context, id int64, patch models.JobPatch) (*models.Job, error)
	AddJobItem(ctx context.Context, jobID, serviceID int64) (*models.JobItem, error)
	CreateTask(ctx context.Context, task models.NewTask) (*models.JobTask, error)
	StartTask(ctx context.Context, id int64) (*models.JobTask, error)
	CompleteTask(ctx context.Context, id int64) (*models.JobTask, error)
	QCChecklist(ctx context.Context, jobID int64) ([]models.QCChecklistEntry, error)
	UpdateQCChecklist(ctx context.Context, jobID int64, updates []models.QCChecklistUpdate) error
}

// Event describes a change the backend confirmed.
type Event struct {
	Kind   models.JobEventKind
	JobID  int64
	TaskID int64
	From   string
	To     string
	Job    *models.Job
	Task   *models.JobTask
	Item   *models.JobItem
}

// Recorder receives confirmed events.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, e Event)

func (f RecorderFunc) Record(ctx context.Context, e Event) { f(ctx, e) }

// Options tunes a Tracker.
type Options struct {
	AllowCancel bool
	Recorder    Recorder
}

// Tracker mirrors one job of the system of record and drives its status and
// task transitions. The mirror only changes through Reduce.
type Tracker struct {
	mu    sync.Mutex
	id    int64
	store JobStore
	opts  Options

	job *models.Job
	rev uint64

	statusBusy bool
	itemBusy   bool
	taskBusy   map[int64]bool
	assignBusy map[int64]bool
	errMsg     string
}

// NewTracker creates an unloaded mirror of job id.
func NewTracker(id int64, store JobStore, opts Options) *Tracker {
	return &Tracker{
		id:         id,
		store:      store,
		opts:       opts,
		taskBusy:   map[int64]bool{},
		assignBusy: map[int64]bool{},
	}
}

// ID returns the mirrored job id.
func (t *Tracker) ID() int64 { return t.id }

// Load fetches the job. A response that arrives after a newer confirmed change
// is discarded.
func (t *Tracker) Load(ctx context.Context) error {
	t.mu.Lock()
	rev := t.rev
	t.mu.Unlock()

	job, err := t.store.GetJob(ctx, t.id)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.errMsg = backend.Detail(err, "Failed to load job")
		return errors.Wrapf(err, "load job %d", t.id)
	}
	if t.rev != rev && t.job != nil {
		return nil
	}
	return t.reduce(ConfirmedJob{Job: job})
}

// reduce applies a confirmed response. Callers hold t.mu.
func (t *Tracker) reduce(c Confirmed) error {
	next, err := Reduce(t.job, c)
	if err != nil {
		return err
	}
	t.job = next
	t.rev++
	t.errMsg = ""
	return nil
}

// Job returns a copy of the mirrored job, or nil before Load.
func (t *Tracker) Job() *models.Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return nil
	}
	cp := cloneJob(t.job)
	return &cp
}

// Actions returns the primary actions offered for the mirrored status.
func (t *Tracker) Actions() []Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return []Action{}
	}
	return AvailableActions(t.job.Status)
}

// Total sums the mirrored items' price snapshots.
func (t *Tracker) Total() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Total(t.job)
}

// Start moves a PENDING job to IN_PROGRESS.
func (t *Tracker) Start(ctx context.Context) (*models.Job, error) {
	return t.transition(ctx, models.JobPatch{Status: models.JobStatusInProgress})
}

// SendToQC moves an IN_PROGRESS job to QC.
func (t *Tracker) SendToQC(ctx context.Context) (*models.Job, error) {
	return t.transition(ctx, models.JobPatch{Status: models.JobStatusQC})
}

// Complete closes a job in QC with payment details. The payment is validated
// before any request is sent.
func (t *Tracker) Complete(ctx context.Context, p Payment) (*models.Job, error) {
	p, err := ValidatePayment(p)
	if err != nil {
		t.mu.Lock()
		t.errMsg = err.Error()
		t.mu.Unlock()
		return nil, err
	}
	patch := models.JobPatch{Status: p.Target, PaymentMethod: p.Method}
	if p.Method != models.PaymentCash {
		patch.TransactionReference = p.TransactionReference
	}
	return t.transition(ctx, patch)
}

// Cancel moves any non-terminal job to CANCELLED when cancellation is enabled.
func (t *Tracker) Cancel(ctx context.Context) (*models.Job, error) {
	if !t.opts.AllowCancel {
		return nil, ErrCancellationDisabled
	}
	return t.transition(ctx, models.JobPatch{Status: models.JobStatusCancelled})
}

func (t *Tracker) transition(ctx context.Context, patch models.JobPatch) (*models.Job, error) {
	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if t.statusBusy {
		t.mu.Unlock()
		return nil, ErrInFlight
	}
	from := t.job.Status
	if err := checkTransition(from, patch.Status); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	t.statusBusy = true
	t.mu.Unlock()

	updated, err := t.store.UpdateJob(ctx, t.id, patch)

	t.mu.Lock()
	t.statusBusy = false
	if err != nil {
		t.errMsg = backend.Detail(err, "Failed to update job status")
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "update job %d to %s", t.id, patch.Status)
	}
	if err := t.reduce(ConfirmedStatus{Job: updated}); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	job := cloneJob(t.job)
	t.mu.Unlock()

	t.record(ctx, Event{
		Kind:  models.JobEventStatusChanged,
		JobID: t.id,
		From:  string(from),
		To:    string(job.Status),
		Job:   &job,
	})
	return &job, nil
}

type taskStep struct {
	allowed func(models.JobTask) bool
	call    func(context.Context, int64) (*models.JobTask, error)
	kind    models.JobEventKind
	fail    string
}

// StartTask moves a PENDING task to IN_PROGRESS.
func (t *Tracker) StartTask(ctx context.Context, taskID int64) (*models.JobTask, error) {
	return t.taskTransition(ctx, taskID, taskStep{
		allowed: CanStartTask,
		call:    t.store.StartTask,
		kind:    models.JobEventTaskStarted,
		fail:    "Failed to start task",
	})
}

// CompleteTask moves an IN_PROGRESS task to DONE.
func (t *Tracker) CompleteTask(ctx context.Context, taskID int64) (*models.JobTask, error) {
	return t.taskTransition(ctx, taskID, taskStep{
		allowed: CanCompleteTask,
		call:    t.store.CompleteTask,
		kind:    models.JobEventTaskCompleted,
		fail:    "Failed to complete task",
	})
}

func (t *Tracker) taskTransition(ctx context.Context, taskID int64, step taskStep) (*models.JobTask, error) {
	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if IsTerminal(t.job.Status) {
		t.mu.Unlock()
		return nil, ErrJobClosed
	}
	_, task, ok := t.job.Task(taskID)
	if !ok {
		t.mu.Unlock()
		return nil, ErrUnknownTask
	}
	if t.taskBusy[taskID] {
		t.mu.Unlock()
		return nil, ErrInFlight
	}
	from := task.Status
	if !step.allowed(*task) {
		t.mu.Unlock()
		return nil, errors.Wrapf(ErrTransitionNotAllowed, "task %d is %s", taskID, from)
	}
	t.taskBusy[taskID] = true
	t.mu.Unlock()

	updated, err := step.call(ctx, taskID)

	t.mu.Lock()
	delete(t.taskBusy, taskID)
	if err != nil {
		t.errMsg = backend.Detail(err, step.fail)
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "task %d", taskID)
	}
	if err := t.reduce(ConfirmedTask{Task: updated}); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	_, task, _ = t.job.Task(taskID)
	confirmed := cloneTask(*task)
	t.mu.Unlock()

	t.record(ctx, Event{
		Kind:   step.kind,
		JobID:  t.id,
		TaskID: taskID,
		From:   string(from),
		To:     string(confirmed.Status),
		Task:   &confirmed,
	})
	return &confirmed, nil
}

// AssignStaff creates a PENDING task for staffID under itemID, named after the
// item's service.
func (t *Tracker) AssignStaff(ctx context.Context, itemID, staffID int64) (*models.JobTask, error) {
	if staffID <= 0 {
		return nil, ErrStaffRequired
	}

	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if IsTerminal(t.job.Status) {
		t.mu.Unlock()
		return nil, ErrJobClosed
	}
	item, ok := t.job.Item(itemID)
	if !ok {
		t.mu.Unlock()
		return nil, ErrUnknownItem
	}
	if t.assignBusy[itemID] {
		t.mu.Unlock()
		return nil, ErrInFlight
	}
	req := models.NewTask{
		JobItem:  itemID,
		StaffID:  staffID,
		TaskName: item.Service.Name,
		Status:   models.TaskStatusPending,
	}
	t.assignBusy[itemID] = true
	t.mu.Unlock()

	created, err := t.store.CreateTask(ctx, req)

	t.mu.Lock()
	delete(t.assignBusy, itemID)
	if err != nil {
		t.errMsg = backend.Detail(err, "Failed to assign staff")
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "assign staff %d to item %d", staffID, itemID)
	}
	if err := t.reduce(ConfirmedNewTask{ItemID: itemID, Task: created}); err != nil {
		t.mu.Unlock()
		return nil, err
	}
	task := cloneTask(*created)
	t.mu.Unlock()

	t.record(ctx, Event{
		Kind:   models.JobEventTaskAssigned,
		JobID:  t.id,
		TaskID: task.ID,
		To:     string(task.Status),
		Task:   &task,
	})
	return &task, nil
}

// AddItem adds a catalog service to the job and re-fetches the job so the item
// list and total are refreshed as a whole.
func (t *Tracker) AddItem(ctx context.Context, serviceID int64) (*models.Job, error) {
	if serviceID <= 0 {
		return nil, ErrServiceRequired
	}

	t.mu.Lock()
	if t.job == nil {
		t.mu.Unlock()
		return nil, ErrNotLoaded
	}
	if IsTerminal(t.job.Status) {
		t.mu.Unlock()
		return nil, ErrJobClosed
	}
	if t.itemBusy {
		t.mu.Unlock()
		return nil, ErrInFlight
	}
	t.itemBusy = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.itemBusy = false
		t.mu.Unlock()
	}()

	item, err := t.store.AddJobItem(ctx, t.id, serviceID)
	if err != nil {
		t.mu.Lock()
		t.errMsg = backend.Detail(err, "Failed to add service")
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "add service %d to job %d", serviceID, t.id)
	}

	t.record(ctx, Event{Kind: models.JobEventItemAdded, JobID: t.id, Item: item})

	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t.Job(), nil
}

// QCChecklist returns the checklist responses while the job is in QC.
func (t *Tracker) QCChecklist(ctx context.Context) ([]models.QCChecklistEntry, error) {
	if err := t.requireQC(); err != nil {
		return nil, err
	}
	entries, err := t.store.QCChecklist(ctx, t.id)
	if err != nil {
		return nil, errors.Wrapf(err, "load checklist of job %d", t.id)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// UpdateQCChecklist changes checklist responses and returns the stored list.
func (t *Tracker) UpdateQCChecklist(ctx context.Context, updates []models.QCChecklistUpdate) ([]models.QCChecklistEntry, error) {
	if err := t.requireQC(); err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return t.QCChecklist(ctx)
	}
	if err := t.store.UpdateQCChecklist(ctx, t.id, updates); err != nil {
		t.mu.Lock()
		t.errMsg = backend.Detail(err, "Failed to save checklist")
		t.mu.Unlock()
		return nil, errors.Wrapf(err, "update checklist of job %d", t.id)
	}
	return t.QCChecklist(ctx)
}

func (t *Tracker) requireQC() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.job == nil {
		return ErrNotLoaded
	}
	if t.job.Status != models.JobStatusQC {
		return ErrNotInQC
	}
	return nil
}

func (t *Tracker) record(ctx context.Context, e Event) {
	if t.opts.Recorder != nil {
		t.opts.Recorder.Record(ctx, e)
	}
}

// ActionView is a primary action with its caption.
type ActionView struct {
	Action Action `json:"action"`
	Label  string `json:"label"`
}

// State is a render snapshot of the job mirror.
type State struct {
	Job         *models.Job        `json:"job"`
	Actions     []ActionView       `json:"actions"`
	Total       decimal.Decimal    `json:"total"`
	Terminal    bool               `json:"terminal"`
	CanCancel   bool               `json:"canCancel"`
	StatusBusy  bool               `json:"statusBusy"`
	BusyTasks   []int64            `json:"busyTasks"`
	AddingItem  bool               `json:"addingItem"`
	Error       string             `json:"error,omitempty"`
	TaskActions map[int64]TaskView `json:"taskActions"`
}

// TaskView lists the actions offered for one task.
type TaskView struct {
	CanStart    bool `json:"canStart"`
	CanComplete bool `json:"canComplete"`
}

// State returns a snapshot of the mirror.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := State{
		Actions:     []ActionView{},
		Total:       Total(t.job),
		StatusBusy:  t.statusBusy,
		BusyTasks:   []int64{},
		AddingItem:  t.itemBusy,
		Error:       t.errMsg,
		TaskActions: map[int64]TaskView{},
	}
	for id := range t.taskBusy {
		st.BusyTasks = append(st.BusyTasks, id)
	}
	sort.Slice(st.BusyTasks, func(i, j int) bool { return st.BusyTasks[i] < st.BusyTasks[j] })
	if t.job == nil {
		return st
	}

	job := cloneJob(t.job)
	st.Job = &job
	st.Terminal = IsTerminal(job.Status)
	st.CanCancel = t.opts.AllowCancel && CanCancel(job.Status)
	for _, a := range AvailableActions(job.Status) {
		st.Actions = append(st.Actions, ActionView{Action: a, Label: a.Label()})
	}
	for _, item := range job.Items {
		for _, task := range item.Tasks {
			st.TaskActions[task.ID] = TaskView{
				CanStart:    !st.Terminal && CanStartTask(task),
				CanComplete: !st.Terminal && CanCompleteTask(task),
			}
		}
	}
	return st
}
