package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/washops/backend/internal/models"
)

// ListJobs returns jobs ordered by creation time descending.
func (c *Client) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", string(filter.Status))
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	if filter.DateFrom != "" {
		q.Set("date_from", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q.Set("date_to", filter.DateTo)
	}
	if filter.Customer != 0 {
		q.Set("customer", strconv.FormatInt(filter.Customer, 10))
	}
	return list[models.Job](ctx, c, "/jobs/", q)
}

// GetJob returns one job with its items and tasks.
func (c *Client) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d/", id), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob submits a job creation request; the backend fans it out into items.
func (c *Client) CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/", nil, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateJob patches a job's status and payment fields.
func (c *Client) UpdateJob(ctx context.Context, id int64, patch models.JobPatch) (*models.Job, error) {
	var job models.Job
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/jobs/%d/", id), nil, patch, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// AddJobItem adds a catalog service to an existing job.
func (c *Client) AddJobItem(ctx context.Context, jobID, serviceID int64) (*models.JobItem, error) {
	var item models.JobItem
	body := map[string]int64{"service_id": serviceID}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/add_item/", jobID), nil, body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateTask creates a task under a job item.
func (c *Client) CreateTask(ctx context.Context, task models.NewTask) (*models.JobTask, error) {
	var created models.JobTask
	if err := c.do(ctx, http.MethodPost, "/tasks/", nil, task, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// StartTask asks the backend to move a task to IN_PROGRESS and stamp its start time.
func (c *Client) StartTask(ctx context.Context, id int64) (*models.JobTask, error) {
	var task models.JobTask
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/start/", id), nil, struct{}{}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CompleteTask asks the backend to move a task to DONE and stamp its end time.
func (c *Client) CompleteTask(ctx context.Context, id int64) (*models.JobTask, error) {
	var task models.JobTask
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/tasks/%d/complete/", id), nil, struct{}{}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// QCChecklist returns the checklist responses of a job in QC.
func (c *Client) QCChecklist(ctx context.Context, jobID int64) ([]models.QCChecklistEntry, error) {
	return list[models.QCChecklistEntry](ctx, c, fmt.Sprintf("/jobs/%d/qc_checklist/", jobID), nil)
}

// UpdateQCChecklist changes checklist responses of a job in QC.
func (c *Client) UpdateQCChecklist(ctx context.Context, jobID int64, updates []models.QCChecklistUpdate) error {
	body := map[string]any{"updates": updates}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/qc_checklist/", jobID), nil, body, nil)
}

// ActiveServices returns the service catalog filtered to active entries.
func (c *Client) ActiveServices(ctx context.Context) ([]models.Service, error) {
	services, err := list[models.Service](ctx, c, "/services/", nil)
	if err != nil {
		return nil, err
	}
	active := services[:0]
	for _, s := range services {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}

// ActiveStaff returns staff members that are currently active.
func (c *Client) ActiveStaff(ctx context.Context) ([]models.Staff, error) {
	staff, err := list[models.Staff](ctx, c, "/staff/", nil)
	if err != nil {
		return nil, err
	}
	active := staff[:0]
	for _, s := range staff {
		if s.IsActive {
			active = append(active, s)
		}
	}
	return active, nil
}
