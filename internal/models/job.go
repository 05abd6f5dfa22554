package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JobStatus describes the life-cycle state of a job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusQC         JobStatus = "QC"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusPaid       JobStatus = "PAID"
	JobStatusCancelled  JobStatus = "CANCELLED"
)

// TaskStatus describes the life-cycle state of a single job task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

const (
	PaymentCash           PaymentMethod = "CASH"
	PaymentMobileTransfer PaymentMethod = "MOBILE_TRANSFER"
	PaymentMobileBanking  PaymentMethod = "MOBILE_BANKING"
	PaymentCard           PaymentMethod = "CARD"
	PaymentBankTransfer   PaymentMethod = "BANK_TRANSFER"
	PaymentOther          PaymentMethod = "OTHER"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentMobileTransfer, PaymentMobileBanking, PaymentCard, PaymentBankTransfer, PaymentOther:
		return true
	}
	return false
}

// Job is one work order for a customer's vehicle.
type Job struct {
	ID                   int64         `json:"id"`
	Customer             Customer      `json:"customer"`
	Car                  Car           `json:"car"`
	Status               JobStatus     `json:"status"`
	PaymentMethod        PaymentMethod `json:"payment_method,omitempty"`
	TransactionReference string        `json:"transaction_reference,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	CompletedAt          *time.Time    `json:"completed_at,omitempty"`
	Items                []JobItem     `json:"items,omitempty"`
}

// Item returns the job item with the given id.
func (j *Job) Item(id int64) (*JobItem, bool) {
	for i := range j.Items {
		if j.Items[i].ID == id {
			return &j.Items[i], true
		}
	}
	return nil, false
}

// Task returns the task with the given id together with its owning item.
func (j *Job) Task(id int64) (*JobItem, *JobTask, bool) {
	for i := range j.Items {
		item := &j.Items[i]
		for k := range item.Tasks {
			if item.Tasks[k].ID == id {
				return item, &item.Tasks[k], true
			}
		}
	}
	return nil, nil, false
}

// JobItem is one purchased service within a job. Price is the snapshot taken
// when the item was added, not the current catalog price.
type JobItem struct {
	ID      int64           `json:"id"`
	Job     int64           `json:"job"`
	Service Service         `json:"service"`
	Price   decimal.Decimal `json:"price"`
	Tasks   []JobTask       `json:"tasks,omitempty"`
}

// JobTask is a unit of assigned work within a job item.
type JobTask struct {
	ID        int64      `json:"id"`
	JobItem   int64      `json:"job_item"`
	Staff     *Staff     `json:"staff,omitempty"`
	StaffID   int64      `json:"staff_id,omitempty"`
	TaskName  string     `json:"task_name"`
	Status    TaskStatus `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// CreateJobRequest is the write-only composite submitted by the job wizard.
type CreateJobRequest struct {
	CustomerID int64   `json:"customer_id"`
	CarID      int64   `json:"car_id"`
	ServiceIDs []int64 `json:"service_ids"`
}

// JobPatch is the body of PATCH /jobs/{id}/.
type JobPatch struct {
	Status               JobStatus     `json:"status"`
	PaymentMethod        PaymentMethod `json:"payment_method,omitempty"`
	TransactionReference string        `json:"transaction_reference,omitempty"`
}

// NewTask is the body of POST /tasks/.
type NewTask struct {
	JobItem  int64      `json:"job_item"`
	StaffID  int64      `json:"staff_id"`
	TaskName string     `json:"task_name"`
	Status   TaskStatus `json:"status"`
}

// JobFilter narrows GET /jobs/.
type JobFilter struct {
	Status   JobStatus
	Search   string
	DateFrom string
	DateTo   string
	Customer int64
}

// QCChecklistEntry is one response row of a job's QC checklist.
type QCChecklistEntry struct {
	ID       int64  `json:"id"`
	ItemName string `json:"item_name"`
	Checked  bool   `json:"checked"`
	Notes    string `json:"notes,omitempty"`
}

// QCChecklistUpdate changes one checklist response.
type QCChecklistUpdate struct {
	ID      int64   `json:"id" binding:"required"`
	Checked *bool   `json:"checked,omitempty"`
	Notes   *string `json:"notes,omitempty"`
}
