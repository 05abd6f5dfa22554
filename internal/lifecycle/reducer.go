package lifecycle

import (
	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/models"
)

// ErrStaleResponse marks a confirmed response older than the mirrored state.
var ErrStaleResponse = errors.New("lifecycle: response is older than the mirrored state")

// Confirmed is a backend response that may be folded into a job mirror. Only
// values built from successful responses implement it; Reduce is the sole
// writer of mirrored job state.
type Confirmed interface {
	apply(job *models.Job) error
}

// ConfirmedJob replaces the mirror with a freshly fetched job.
type ConfirmedJob struct{ Job *models.Job }

func (c ConfirmedJob) apply(job *models.Job) error {
	if c.Job == nil {
		return errors.New("lifecycle: empty job response")
	}
	*job = cloneJob(c.Job)
	return nil
}

// ConfirmedStatus folds the response of a status PATCH into the mirror. Items
// are replaced only when the response carries them.
type ConfirmedStatus struct{ Job *models.Job }

func (c ConfirmedStatus) apply(job *models.Job) error {
	if c.Job == nil {
		return errors.New("lifecycle: empty status response")
	}
	if c.Job.ID != 0 && c.Job.ID != job.ID {
		return errors.Errorf("lifecycle: response for job %d applied to job %d", c.Job.ID, job.ID)
	}
	job.Status = c.Job.Status
	job.PaymentMethod = c.Job.PaymentMethod
	job.TransactionReference = c.Job.TransactionReference
	job.CompletedAt = c.Job.CompletedAt
	if c.Job.Items != nil {
		job.Items = cloneJob(c.Job).Items
	}
	return nil
}

// ConfirmedTask folds a task returned by start or complete into the mirror.
// A response that would move the task backwards is rejected.
type ConfirmedTask struct{ Task *models.JobTask }

func (c ConfirmedTask) apply(job *models.Job) error {
	if c.Task == nil {
		return errors.New("lifecycle: empty task response")
	}
	_, task, ok := job.Task(c.Task.ID)
	if !ok {
		return errors.Errorf("lifecycle: task %d is not part of job %d", c.Task.ID, job.ID)
	}
	if taskRank[c.Task.Status] < taskRank[task.Status] {
		return errors.Wrapf(ErrStaleResponse, "task %d is %s, response says %s", task.ID, task.Status, c.Task.Status)
	}
	task.Status = c.Task.Status
	task.StartTime = c.Task.StartTime
	task.EndTime = c.Task.EndTime
	if c.Task.Staff != nil {
		staff := *c.Task.Staff
		task.Staff = &staff
	}
	if c.Task.StaffID != 0 {
		task.StaffID = c.Task.StaffID
	}
	return nil
}

// ConfirmedNewTask appends a task created under an item.
type ConfirmedNewTask struct {
	ItemID int64
	Task   *models.JobTask
}

func (c ConfirmedNewTask) apply(job *models.Job) error {
	if c.Task == nil {
		return errors.New("lifecycle: empty task response")
	}
	if _, _, exists := job.Task(c.Task.ID); exists {
		return ConfirmedTask{Task: c.Task}.apply(job)
	}
	itemID := c.Task.JobItem
	if itemID == 0 {
		itemID = c.ItemID
	}
	item, ok := job.Item(itemID)
	if !ok {
		return errors.Errorf("lifecycle: item %d is not part of job %d", itemID, job.ID)
	}
	item.Tasks = append(item.Tasks, cloneTask(*c.Task))
	return nil
}

// Reduce returns a copy of current with the confirmed response applied.
// current is never modified; on error it remains the valid state.
func Reduce(current *models.Job, c Confirmed) (*models.Job, error) {
	var next models.Job
	if current != nil {
		next = cloneJob(current)
	}
	if err := c.apply(&next); err != nil {
		return current, err
	}
	return &next, nil
}

func cloneJob(j *models.Job) models.Job {
	cp := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Items != nil {
		cp.Items = make([]models.JobItem, len(j.Items))
		for i, item := range j.Items {
			ci := item
			if item.Tasks != nil {
				ci.Tasks = make([]models.JobTask, len(item.Tasks))
				for k, task := range item.Tasks {
					ci.Tasks[k] = cloneTask(task)
				}
			}
			cp.Items[i] = ci
		}
	}
	return cp
}

func cloneTask(t models.JobTask) models.JobTask {
	if t.StartTime != nil {
		s := *t.StartTime
		t.StartTime = &s
	}
	if t.EndTime != nil {
		e := *t.EndTime
		t.EndTime = &e
	}
	if t.Staff != nil {
		s := *t.Staff
		t.Staff = &s
	}
	return t
}
