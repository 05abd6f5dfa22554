package jobwizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/models"
)

// Steps of the job creation flow.
const (
	StepCustomer = 1
	StepVehicle  = 2
	StepServices = 3
)

// MinQueryLength is the shortest search term sent to the backend.
const MinQueryLength = 2

// DefaultDebounce is the quiet period a search waits for newer keystrokes.
const DefaultDebounce = 300 * time.Millisecond

var (
	ErrSuperseded       = errors.New("jobwizard: search superseded by a newer query")
	ErrInFlight         = errors.New("jobwizard: request already in flight")
	ErrAlreadySubmitted = errors.New("jobwizard: job already created")
	ErrWrongStep        = errors.New("jobwizard: action not available on this step")
	ErrAtLastStep       = errors.New("jobwizard: already at the last step")
	ErrNoCustomer       = errors.New("jobwizard: select a customer first")
	ErrNoCar            = errors.New("jobwizard: select a vehicle first")
	ErrNoServices       = errors.New("jobwizard: select at least one service")
	ErrUnknownCar       = errors.New("jobwizard: vehicle does not belong to the selected customer")
	ErrUnknownService   = errors.New("jobwizard: service is not in the active catalog")
)

// Store is the part of the system of record used to create jobs.
type Store interface {
	SearchCustomers(ctx context.Context, query string) ([]models.Customer, error)
	CustomerCars(ctx context.Context, customerID int64) ([]models.Car, error)
	ActiveServices(ctx context.Context) ([]models.Service, error)
	CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.Job, error)
}

// Outcome is the result of a successful submission.
type Outcome struct {
	Job      *models.Job `json:"job"`
	Redirect string      `json:"redirect"`
}

// Wizard assembles one CreateJobRequest across three steps and submits it once.
type Wizard struct {
	mu       sync.Mutex
	store    Store
	debounce time.Duration

	step int

	searchSeq   uint64
	searching   bool
	query       string
	results     []models.Customer
	resultsFrom string

	customer    *models.Customer
	cars        []models.Car
	carsLoaded  bool
	loadingCars bool
	car         *models.Car

	services []models.Service
	selected []int64

	submitting bool
	errMsg     string
	result     *Outcome
}

// New returns a wizard on step 1. A non-positive debounce uses DefaultDebounce.
func New(store Store, debounce time.Duration) *Wizard {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Wizard{store: store, debounce: debounce, step: StepCustomer}
}

// Search looks customers up by free text. Calls are debounced: a call that is
// overtaken by a newer one before its response is applied returns ErrSuperseded.
// Terms shorter than MinQueryLength clear the results without a request, and
// repeating the last query returns its cached results.
func (w *Wizard) Search(ctx context.Context, q string) ([]models.Customer, error) {
	q = strings.TrimSpace(q)

	w.mu.Lock()
	w.searchSeq++
	seq := w.searchSeq
	w.query = q
	if len([]rune(q)) < MinQueryLength {
		w.results = nil
		w.resultsFrom = ""
		w.searching = false
		w.mu.Unlock()
		return nil, nil
	}
	if q == w.resultsFrom {
		out := append([]models.Customer(nil), w.results...)
		w.searching = false
		w.mu.Unlock()
		return out, nil
	}
	w.searching = true
	w.mu.Unlock()

	timer := time.NewTimer(w.debounce)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		w.mu.Lock()
		if w.searchSeq == seq {
			w.searching = false
		}
		w.mu.Unlock()
		return nil, ctx.Err()
	case <-timer.C:
	}

	if !w.current(seq) {
		return nil, ErrSuperseded
	}

	found, err := w.store.SearchCustomers(ctx, q)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.searchSeq != seq {
		return nil, ErrSuperseded
	}
	w.searching = false
	if err != nil {
		w.errMsg = backend.Detail(err, "Customer search failed")
		return nil, errors.Wrap(err, "search customers")
	}
	w.results = found
	w.resultsFrom = q
	return append([]models.Customer(nil), found...), nil
}

func (w *Wizard) current(seq uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.searchSeq == seq
}

// SelectCustomer picks the job's customer. Choosing a different customer drops
// the fetched cars, the selected car and the selected services.
func (w *Wizard) SelectCustomer(c models.Customer) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepCustomer {
		return ErrWrongStep
	}
	if w.customer == nil || w.customer.ID != c.ID {
		w.cars = nil
		w.carsLoaded = false
		w.car = nil
		w.selected = nil
	}
	w.customer = &c
	return nil
}

// NextStep advances one step. Leaving step 1 fetches the customer's cars and
// stays on step 1 when that fetch fails.
func (w *Wizard) NextStep(ctx context.Context) error {
	w.mu.Lock()
	switch w.step {
	case StepCustomer:
		if w.customer == nil {
			w.mu.Unlock()
			return ErrNoCustomer
		}
		if w.loadingCars {
			w.mu.Unlock()
			return ErrInFlight
		}
		customerID := w.customer.ID
		w.loadingCars = true
		w.errMsg = ""
		w.mu.Unlock()

		cars, err := w.store.CustomerCars(ctx, customerID)

		w.mu.Lock()
		defer w.mu.Unlock()
		w.loadingCars = false
		if w.customer == nil || w.customer.ID != customerID {
			return ErrNoCustomer
		}
		if err != nil {
			w.errMsg = backend.Detail(err, "Failed to load vehicles")
			return errors.Wrapf(err, "load cars of customer %d", customerID)
		}
		w.cars = cars
		w.carsLoaded = true
		if w.car != nil && !hasCar(cars, w.car.ID) {
			w.car = nil
		}
		w.step = StepVehicle
		return nil
	case StepVehicle:
		defer w.mu.Unlock()
		if w.car == nil {
			return ErrNoCar
		}
		w.step = StepServices
		return nil
	default:
		w.mu.Unlock()
		return ErrAtLastStep
	}
}

// PreviousStep moves back one step. It reports false on step 1.
func (w *Wizard) PreviousStep() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepCustomer || w.submitting {
		return false
	}
	w.step--
	return true
}

// CanAdvance reports whether the current step's selection allows moving on.
// On step 3 it reports whether the request can be submitted.
func (w *Wizard) CanAdvance() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canAdvance()
}

func (w *Wizard) canAdvance() bool {
	switch w.step {
	case StepCustomer:
		return w.customer != nil && !w.loadingCars
	case StepVehicle:
		return w.car != nil
	default:
		return len(w.selected) > 0 && !w.submitting && w.result == nil
	}
}

// EmptyVehicles reports the blocking state of a customer without cars.
func (w *Wizard) EmptyVehicles() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step == StepVehicle && w.carsLoaded && len(w.cars) == 0
}

// SelectCar picks one of the fetched cars.
func (w *Wizard) SelectCar(carID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepVehicle {
		return ErrWrongStep
	}
	for i := range w.cars {
		if w.cars[i].ID == carID {
			car := w.cars[i]
			w.car = &car
			return nil
		}
	}
	return ErrUnknownCar
}

// LoadServices fetches the active service catalog. Selections that are no
// longer offered are dropped.
func (w *Wizard) LoadServices(ctx context.Context) error {
	list, err := w.store.ActiveServices(ctx)
	if err != nil {
		w.mu.Lock()
		w.errMsg = backend.Detail(err, "Failed to load services")
		w.mu.Unlock()
		return errors.Wrap(err, "load services")
	}
	active := make([]models.Service, 0, len(list))
	for _, s := range list {
		if s.IsActive {
			active = append(active, s)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.services = active
	kept := w.selected[:0]
	for _, id := range w.selected {
		if _, ok := w.service(id); ok {
			kept = append(kept, id)
		}
	}
	w.selected = kept
	return nil
}

func (w *Wizard) service(id int64) (models.Service, bool) {
	for _, s := range w.services {
		if s.ID == id {
			return s, true
		}
	}
	return models.Service{}, false
}

// ToggleService adds or removes a service and reports whether it is now selected.
func (w *Wizard) ToggleService(serviceID int64) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepServices {
		return false, ErrWrongStep
	}
	if _, ok := w.service(serviceID); !ok {
		return false, ErrUnknownService
	}
	for i, id := range w.selected {
		if id == serviceID {
			w.selected = append(w.selected[:i], w.selected[i+1:]...)
			return false, nil
		}
	}
	w.selected = append(w.selected, serviceID)
	return true, nil
}

// Total is the sum of the selected services' catalog prices. Taxes and
// discounts are applied by the backend when invoicing.
func (w *Wizard) Total() decimal.Decimal {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total()
}

func (w *Wizard) total() decimal.Decimal {
	sum := decimal.Zero
	for _, id := range w.selected {
		if s, ok := w.service(id); ok {
			sum = sum.Add(s.Price)
		}
	}
	return sum
}

// Submit sends the assembled request once. On failure the wizard stays on
// step 3 with every selection intact.
func (w *Wizard) Submit(ctx context.Context) (*Outcome, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrInFlight
	}
	if w.result != nil {
		w.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}
	if w.step != StepServices {
		w.mu.Unlock()
		return nil, ErrWrongStep
	}
	switch {
	case w.customer == nil:
		w.mu.Unlock()
		return nil, ErrNoCustomer
	case w.car == nil:
		w.mu.Unlock()
		return nil, ErrNoCar
	case len(w.selected) == 0:
		w.errMsg = "Select at least one service"
		w.mu.Unlock()
		return nil, ErrNoServices
	}
	req := models.CreateJobRequest{
		CustomerID: w.customer.ID,
		CarID:      w.car.ID,
		ServiceIDs: append([]int64(nil), w.selected...),
	}
	w.submitting = true
	w.errMsg = ""
	w.mu.Unlock()

	job, err := w.store.CreateJob(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.errMsg = backend.Detail(err, "Failed to create job")
		return nil, errors.Wrap(err, "create job")
	}
	w.result = &Outcome{Job: job, Redirect: fmt.Sprintf("/operations/%d", job.ID)}
	return w.result, nil
}

// State is a render snapshot of the wizard.
type State struct {
	Step          int               `json:"step"`
	Query         string            `json:"query"`
	Searching     bool              `json:"searching"`
	Results       []models.Customer `json:"results"`
	Customer      *models.Customer  `json:"customer,omitempty"`
	Cars          []models.Car      `json:"cars"`
	LoadingCars   bool              `json:"loadingCars"`
	EmptyVehicles bool              `json:"emptyVehicles"`
	Car           *models.Car       `json:"car,omitempty"`
	Services      []models.Service  `json:"services"`
	Selected      []int64           `json:"selectedServiceIds"`
	Total         decimal.Decimal   `json:"total"`
	CanAdvance    bool              `json:"canAdvance"`
	Submitting    bool              `json:"submitting"`
	Error         string            `json:"error,omitempty"`
	Result        *Outcome          `json:"result,omitempty"`
}

// State returns a snapshot of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{
		Step:          w.step,
		Query:         w.query,
		Searching:     w.searching,
		Results:       append([]models.Customer(nil), w.results...),
		Cars:          append([]models.Car(nil), w.cars...),
		LoadingCars:   w.loadingCars,
		EmptyVehicles: w.step == StepVehicle && w.carsLoaded && len(w.cars) == 0,
		Services:      append([]models.Service(nil), w.services...),
		Selected:      append([]int64(nil), w.selected...),
		Total:         w.total(),
		CanAdvance:    w.canAdvance(),
		Submitting:    w.submitting,
		Error:         w.errMsg,
		Result:        w.result,
	}
	if w.customer != nil {
		c := *w.customer
		st.Customer = &c
	}
	if w.car != nil {
		c := *w.car
		st.Car = &c
	}
	return st
}

func hasCar(cars []models.Car, id int64) bool {
	for _, c := range cars {
		if c.ID == id {
			return true
		}
	}
	return false
}
