package lifecycle

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/washops/backend/internal/models"
)

var (
	ErrTransitionNotAllowed         = errors.New("lifecycle: transition not allowed")
	ErrPaymentMethodRequired        = errors.New("lifecycle: payment method is required")
	ErrTransactionReferenceRequired = errors.New("lifecycle: transaction reference is required for non-cash payments")
	ErrInvalidCompletionTarget      = errors.New("lifecycle: completion target must be COMPLETED or PAID")
)

// Action is a primary operator action offered for a job status.
type Action string

const (
	ActionStart    Action = "start"
	ActionSendToQC Action = "send_to_qc"
	ActionComplete Action = "complete"
)

// Label is the button caption of the action.
func (a Action) Label() string {
	switch a {
	case ActionStart:
		return "Start Job"
	case ActionSendToQC:
		return "Send to QC"
	case ActionComplete:
		return "Complete"
	}
	return string(a)
}

var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusPending:    {models.JobStatusInProgress, models.JobStatusCancelled},
	models.JobStatusInProgress: {models.JobStatusQC, models.JobStatusCancelled},
	models.JobStatusQC:         {models.JobStatusCompleted, models.JobStatusPaid, models.JobStatusCancelled},
	models.JobStatusCompleted:  {models.JobStatusCancelled},
	models.JobStatusPaid:       nil,
	models.JobStatusCancelled:  nil,
}

// CanTransition reports whether the job status machine allows from -> to.
func CanTransition(from, to models.JobStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status models.JobStatus) bool {
	return len(transitions[status]) == 0
}

// CanCancel reports whether a job in status may still be cancelled.
func CanCancel(status models.JobStatus) bool {
	return CanTransition(status, models.JobStatusCancelled)
}

// AvailableActions returns the primary actions for status. The result depends
// on status alone.
func AvailableActions(status models.JobStatus) []Action {
	switch status {
	case models.JobStatusPending:
		return []Action{ActionStart}
	case models.JobStatusInProgress:
		return []Action{ActionSendToQC}
	case models.JobStatusQC:
		return []Action{ActionComplete}
	default:
		return []Action{}
	}
}

func checkTransition(from, to models.JobStatus) error {
	if !CanTransition(from, to) {
		return errors.Wrapf(ErrTransitionNotAllowed, "%s -> %s", from, to)
	}
	return nil
}

// Payment is the completion sub-flow input.
type Payment struct {
	Method               models.PaymentMethod `json:"payment_method"`
	TransactionReference string               `json:"transaction_reference"`
	Target               models.JobStatus     `json:"status"`
}

// ValidatePayment checks a completion request before anything is sent. An
// empty target defaults to COMPLETED.
func ValidatePayment(p Payment) (Payment, error) {
	p.TransactionReference = strings.TrimSpace(p.TransactionReference)
	if p.Target == "" {
		p.Target = models.JobStatusCompleted
	}
	if p.Target != models.JobStatusCompleted && p.Target != models.JobStatusPaid {
		return p, ErrInvalidCompletionTarget
	}
	if p.Method == "" || !p.Method.Valid() {
		return p, ErrPaymentMethodRequired
	}
	if p.Method != models.PaymentCash && p.TransactionReference == "" {
		return p, ErrTransactionReferenceRequired
	}
	return p, nil
}

// CanStartTask reports whether a task may move to IN_PROGRESS.
func CanStartTask(t models.JobTask) bool { return t.Status == models.TaskStatusPending }

// CanCompleteTask reports whether a task may move to DONE.
func CanCompleteTask(t models.JobTask) bool { return t.Status == models.TaskStatusInProgress }

var taskRank = map[models.TaskStatus]int{
	models.TaskStatusPending:    0,
	models.TaskStatusInProgress: 1,
	models.TaskStatusDone:       2,
}

// Total sums the price snapshots of the job's items. An empty job totals zero.
func Total(job *models.Job) decimal.Decimal {
	sum := decimal.Zero
	if job == nil {
		return sum
	}
	for _, item := range job.Items {
		sum = sum.Add(item.Price)
	}
	return sum
}
