package onboarding

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/backend"
	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/validation"
)

var (
	ErrInFlight          = errors.New("onboarding: request already in flight")
	ErrAlreadySubmitted  = errors.New("onboarding: already submitted")
	ErrStepLocked        = errors.New("onboarding: step is not accessible yet")
	ErrUnknownStep       = errors.New("onboarding: step is not part of this mode")
	ErrAtLastStep        = errors.New("onboarding: already at the last step")
	ErrAccountTypeLocked = errors.New("onboarding: account type cannot change while editing")
	ErrUnknownRow        = errors.New("onboarding: unknown vehicle row")
	ErrLastRow           = errors.New("onboarding: at least one vehicle is required")
)

// CustomerStore is the slice of the system of record the wizard talks to.
type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*models.CustomerDetail, error)
	OnboardIndividual(ctx context.Context, payload models.IndividualOnboarding) (*models.CustomerDetail, error)
	OnboardCorporate(ctx context.Context, payload models.CorporateOnboarding) (*models.CustomerDetail, error)
	AddCar(ctx context.Context, customerID int64, car models.NewCar) (*models.Car, error)
	UpdateCustomer(ctx context.Context, id int64, patch models.CustomerUpdate) (*models.CustomerDetail, error)
	CarMakes(ctx context.Context) ([]models.CarMake, error)
	ModelsForMake(ctx context.Context, makeID int64) ([]models.CarModel, error)
}

// Wizard sequences the onboarding steps of one mode and submits exactly once.
// It is safe for concurrent use; network calls run without holding the lock.
type Wizard struct {
	mu         sync.Mutex
	mode       Mode
	store      CustomerStore
	draft      Draft
	current    int
	makes      []models.CarMake
	models     []models.CarModel
	submitting bool
	errMsg     string
	result     *Outcome
}

// New creates a wizard positioned on the first step of mode.
func New(mode Mode, store CustomerStore) *Wizard {
	return &Wizard{mode: mode, store: store, draft: newDraft()}
}

// Mode returns the wizard's variant.
func (w *Wizard) Mode() Mode { return w.mode }

// Load fetches the make catalog when the mode has car steps and, for edit and
// add-vehicle, the existing customer.
func (w *Wizard) Load(ctx context.Context) error {
	if _, editing := w.mode.(EditCustomer); !editing {
		if err := w.LoadMakes(ctx); err != nil {
			return err
		}
	}

	w.mu.Lock()
	draft := w.draft.clone()
	w.mu.Unlock()

	if err := w.mode.prefill(ctx, w.store, &draft); err != nil {
		w.mu.Lock()
		w.errMsg = backend.Detail(err, "Failed to load customer data")
		w.mu.Unlock()
		return errors.Wrap(err, "load customer")
	}

	w.mu.Lock()
	w.draft.Account = draft.Account
	w.draft.Customer = draft.Customer
	w.draft.Corporate = draft.Corporate
	w.clampCurrent()
	w.mu.Unlock()
	return nil
}

// LoadMakes fetches the car make catalog.
func (w *Wizard) LoadMakes(ctx context.Context) error {
	makes, err := w.store.CarMakes(ctx)
	if err != nil {
		return errors.Wrap(err, "load car makes")
	}
	w.mu.Lock()
	w.makes = makes
	w.mu.Unlock()
	return nil
}

func (w *Wizard) steps() []StepKey {
	return w.mode.Steps(&w.draft)
}

func (w *Wizard) clampCurrent() {
	if last := len(w.steps()) - 1; w.current > last {
		w.current = last
	}
}

// IsStepComplete reports whether step n's required fields pass validation.
func (w *Wizard) IsStepComplete(n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isStepComplete(w.steps(), n)
}

func (w *Wizard) isStepComplete(steps []StepKey, n int) bool {
	if n < 0 || n >= len(steps) {
		return false
	}
	return steps[n].check(&w.draft).Empty()
}

// IsStepAccessible reports whether every step before n is complete.
func (w *Wizard) IsStepAccessible(n int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isStepAccessible(w.steps(), n)
}

func (w *Wizard) isStepAccessible(steps []StepKey, n int) bool {
	if n < 0 || n >= len(steps) {
		return false
	}
	for k := 0; k < n; k++ {
		if !w.isStepComplete(steps, k) {
			return false
		}
	}
	return true
}

// CanGoNext reports whether the current step is valid and a next step exists.
func (w *Wizard) CanGoNext() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps()
	return w.current < len(steps)-1 && w.isStepComplete(steps, w.current)
}

// NextStep advances one step when the current step is valid. On failure the
// step index is unchanged and the returned error carries the violations.
func (w *Wizard) NextStep() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	steps := w.steps()
	if w.current >= len(steps)-1 {
		return ErrAtLastStep
	}
	key := steps[w.current]
	if err := validation.Fail(string(key), key.check(&w.draft)); err != nil {
		return err
	}
	w.current++
	return nil
}

// PreviousStep moves back one step. It reports false on the first step.
func (w *Wizard) PreviousStep() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == 0 {
		return false
	}
	w.current--
	return true
}

// GoToStep jumps to step n when every earlier step is complete.
func (w *Wizard) GoToStep(n int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isStepAccessible(w.steps(), n) {
		return ErrStepLocked
	}
	w.current = n
	return nil
}

// Current returns the index of the current step.
func (w *Wizard) Current() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// SetForm merges the JSON document raw into the form bound to step and
// returns that step's remaining violations.
func (w *Wizard) SetForm(step StepKey, raw []byte) (validation.Violations, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !contains(w.steps(), step) {
		if step == StepAccount {
			return nil, ErrAccountTypeLocked
		}
		return nil, ErrUnknownStep
	}

	switch step {
	case StepAccount:
		f := w.draft.Account
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		changed := f.AccountType != w.draft.Account.AccountType
		w.draft.Account = f
		if changed {
			// the step list depends on the account type
			w.current = indexOf(w.steps(), StepAccount)
		}
	case StepCustomer:
		if w.draft.corporate() {
			f := w.draft.Corporate
			if err := decode(raw, &f); err != nil {
				return nil, err
			}
			f.normalize()
			w.draft.Corporate = f
		} else {
			f := w.draft.Customer
			if err := decode(raw, &f); err != nil {
				return nil, err
			}
			f.normalize()
			w.draft.Customer = f
		}
	case StepCarType:
		f := w.draft.CarType
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		w.draft.CarType = f
	case StepCarMake:
		f := w.draft.CarMake
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		trim(&f.CarMakeText)
		w.setMake(f)
	case StepCarDetails:
		f := w.draft.Details
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		trim(&f.CarModelText, &f.Color)
		w.draft.Details = f
	case StepLicense:
		f := w.draft.License
		if err := decode(raw, &f); err != nil {
			return nil, err
		}
		trim(&f.PlateNumber)
		w.draft.License = f
	default:
		return nil, ErrUnknownStep
	}
	return step.check(&w.draft), nil
}

// setMake stores the make selection; a different make invalidates the model.
func (w *Wizard) setMake(f CarMakeForm) {
	if f.CarMake != w.draft.CarMake.CarMake || f.CarMakeText != w.draft.CarMake.CarMakeText {
		w.draft.Details.CarModel = 0
		w.draft.Details.CarModelText = ""
		w.models = nil
	}
	w.draft.CarMake = f
}

// SelectMake picks a catalog make and reloads the dependent model list.
func (w *Wizard) SelectMake(ctx context.Context, makeID int64) error {
	w.mu.Lock()
	if !contains(w.steps(), StepCarMake) {
		w.mu.Unlock()
		return ErrUnknownStep
	}
	w.setMake(CarMakeForm{CarMake: makeID})
	w.mu.Unlock()

	list, err := w.store.ModelsForMake(ctx, makeID)
	if err != nil {
		return errors.Wrapf(err, "load models for make %d", makeID)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft.CarMake.CarMake == makeID {
		w.models = list
	}
	return nil
}

// AddCar appends an empty fleet row and returns its id.
func (w *Wizard) AddCar() (uuid.UUID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !contains(w.steps(), StepFleet) {
		return uuid.Nil, ErrUnknownStep
	}
	row := &CarRow{ID: uuid.New()}
	w.draft.Fleet = append(w.draft.Fleet, row)
	return row.ID, nil
}

// RemoveCar drops a fleet row together with its model lookup. The last row
// cannot be removed.
func (w *Wizard) RemoveCar(id uuid.UUID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !contains(w.steps(), StepFleet) {
		return ErrUnknownStep
	}
	i, _ := w.draft.row(id)
	if i < 0 {
		return ErrUnknownRow
	}
	if len(w.draft.Fleet) <= 1 {
		return ErrLastRow
	}
	w.draft.Fleet = append(w.draft.Fleet[:i], w.draft.Fleet[i+1:]...)
	return nil
}

// UpdateCar replaces the draft of one fleet row and returns its violations.
func (w *Wizard) UpdateCar(id uuid.UUID, car CarDraft) (validation.Violations, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !contains(w.steps(), StepFleet) {
		return nil, ErrUnknownStep
	}
	_, row := w.draft.row(id)
	if row == nil {
		return nil, ErrUnknownRow
	}
	car.normalize()
	if car.Make != row.Car.Make || car.MakeText != row.Car.MakeText {
		if car.Model == row.Car.Model {
			car.Model = 0
		}
		row.Models = nil
	}
	row.Car = car
	return validation.Struct(row.Car), nil
}

// SelectRowMake sets the make of one fleet row and reloads that row's models
// only. Other rows keep their selections and lookups. A second lookup on the
// same row while one is pending returns ErrInFlight.
func (w *Wizard) SelectRowMake(ctx context.Context, id uuid.UUID, makeID int64) error {
	w.mu.Lock()
	if !contains(w.steps(), StepFleet) {
		w.mu.Unlock()
		return ErrUnknownStep
	}
	_, row := w.draft.row(id)
	if row == nil {
		w.mu.Unlock()
		return ErrUnknownRow
	}
	if row.loading {
		w.mu.Unlock()
		return ErrInFlight
	}
	row.Car.Make = makeID
	row.Car.MakeText = ""
	row.Car.Model = 0
	row.Models = nil
	row.loading = true
	w.mu.Unlock()

	list, err := w.store.ModelsForMake(ctx, makeID)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, row = w.draft.row(id)
	if row != nil {
		row.loading = false
	}
	if err != nil {
		return errors.Wrapf(err, "load models for make %d", makeID)
	}
	if row != nil && row.Car.Make == makeID {
		row.Models = list
	}
	return nil
}

// RowModels returns the model lookup of one fleet row.
func (w *Wizard) RowModels(id uuid.UUID) []models.CarModel {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, row := w.draft.row(id); row != nil {
		return append([]models.CarModel(nil), row.Models...)
	}
	return nil
}

// Submit validates every step of the mode and performs the mode's single
// create or update call. On failure the step and the draft are kept so the
// operator can retry.
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
	for _, key := range w.steps() {
		if err := validation.Fail(string(key), key.check(&w.draft)); err != nil {
			w.errMsg = "Please complete all required fields"
			w.mu.Unlock()
			return nil, err
		}
	}
	snapshot := w.draft.clone()
	w.submitting = true
	w.errMsg = ""
	w.mu.Unlock()

	outcome, err := w.mode.submit(ctx, w.store, snapshot)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.errMsg = backend.Detail(err, "Failed to save. Please try again.")
		return nil, errors.Wrapf(err, "submit %s onboarding", w.mode.Name())
	}
	w.result = outcome
	if i := indexOf(w.steps(), StepComplete); i >= 0 {
		w.current = i
	}
	return outcome, nil
}

// StepView describes one step for rendering.
type StepView struct {
	Index      int        `json:"index"`
	Key        StepKey    `json:"key"`
	Label      string     `json:"label"`
	Complete   bool       `json:"complete"`
	Accessible bool       `json:"accessible"`
	Status     StepStatus `json:"status"`
}

// State is a render snapshot of the wizard.
type State struct {
	Mode              string                `json:"mode"`
	AccountType       models.AccountType    `json:"accountType"`
	AccountTypeLocked bool                  `json:"accountTypeLocked"`
	Steps             []StepView            `json:"steps"`
	CurrentStep       int                   `json:"currentStep"`
	CurrentKey        StepKey               `json:"currentKey"`
	CanGoNext         bool                  `json:"canGoNext"`
	Violations        validation.Violations `json:"violations"`
	Draft             Draft                 `json:"draft"`
	Makes             []models.CarMake      `json:"makes"`
	Models            []models.CarModel     `json:"models"`
	Submitting        bool                  `json:"submitting"`
	Error             string                `json:"error,omitempty"`
	Result            *Outcome              `json:"result,omitempty"`
}

// State returns a snapshot recomputed from the current draft.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	steps := w.steps()
	views := make([]StepView, len(steps))
	for i, key := range steps {
		status := StatusPending
		switch {
		case i < w.current:
			status = StatusComplete
		case i == w.current:
			status = StatusCurrent
		}
		views[i] = StepView{
			Index:      i,
			Key:        key,
			Label:      key.Label(),
			Complete:   w.isStepComplete(steps, i),
			Accessible: w.isStepAccessible(steps, i),
			Status:     status,
		}
	}

	current := steps[w.current]
	_, editing := w.mode.(EditCustomer)
	return State{
		Mode:              w.mode.Name(),
		AccountType:       w.draft.Account.AccountType,
		AccountTypeLocked: editing,
		Steps:             views,
		CurrentStep:       w.current,
		CurrentKey:        current,
		CanGoNext:         w.current < len(steps)-1 && views[w.current].Complete,
		Violations:        current.check(&w.draft),
		Draft:             w.draft.clone(),
		Makes:             append([]models.CarMake(nil), w.makes...),
		Models:            append([]models.CarModel(nil), w.models...),
		Submitting:        w.submitting,
		Error:             w.errMsg,
		Result:            w.result,
	}
}

func decode(raw []byte, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return validation.Fail("form", validation.Violations{"_": "malformed"})
	}
	return nil
}

func contains(steps []StepKey, key StepKey) bool {
	return indexOf(steps, key) >= 0
}

func indexOf(steps []StepKey, key StepKey) int {
	for i, k := range steps {
		if k == key {
			return i
		}
	}
	return -1
}
