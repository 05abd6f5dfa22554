package onboarding

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/example/washops/backend/internal/models"
)

// Mode is the closed set of wizard variants: NewCustomer, EditCustomer and AddVehicle.
// Each variant owns its step list, its prefill and its submission.
type Mode interface {
	Name() string
	Steps(d *Draft) []StepKey
	prefill(ctx context.Context, store CustomerStore, d *Draft) error
	submit(ctx context.Context, store CustomerStore, d Draft) (*Outcome, error)
}

// Outcome describes a successful submission and where the UI goes next.
type Outcome struct {
	CustomerID int64                  `json:"customerId"`
	Customer   *models.CustomerDetail `json:"customer,omitempty"`
	Car        *models.Car            `json:"car,omitempty"`
	QRCode     string                 `json:"qrCode,omitempty"`
	Redirect   string                 `json:"redirect"`
}

func customerPath(id int64) string {
	return fmt.Sprintf("/customers/%d", id)
}

// ParseMode builds a variant from its wire name.
func ParseMode(name string, customerID int64) (Mode, error) {
	switch name {
	case "", "new":
		return NewCustomer{}, nil
	case "edit":
		if customerID <= 0 {
			return nil, errors.New("edit mode requires a customer id")
		}
		return EditCustomer{CustomerID: customerID}, nil
	case "add-vehicle":
		if customerID <= 0 {
			return nil, errors.New("add-vehicle mode requires a customer id")
		}
		return AddVehicle{CustomerID: customerID}, nil
	default:
		return nil, errors.Errorf("unknown onboarding mode %q", name)
	}
}

// NewCustomer onboards a new individual or corporate customer with their vehicles.
type NewCustomer struct{}

func (NewCustomer) Name() string { return "new" }

func (NewCustomer) Steps(d *Draft) []StepKey {
	if d.corporate() {
		return corporateSteps
	}
	return individualSteps
}

func (NewCustomer) prefill(context.Context, CustomerStore, *Draft) error { return nil }

func (NewCustomer) submit(ctx context.Context, store CustomerStore, d Draft) (*Outcome, error) {
	var (
		customer *models.CustomerDetail
		err      error
	)
	if d.corporate() {
		customer, err = store.OnboardCorporate(ctx, corporatePayload(d))
	} else {
		customer, err = store.OnboardIndividual(ctx, individualPayload(d))
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{
		CustomerID: customer.ID,
		Customer:   customer,
		QRCode:     customer.QRCode,
		Redirect:   customerPath(customer.ID),
	}, nil
}

// EditCustomer updates the info fields of an existing customer. The account type
// is shown but cannot change.
type EditCustomer struct {
	CustomerID int64
}

func (EditCustomer) Name() string { return "edit" }

func (EditCustomer) Steps(*Draft) []StepKey { return editSteps }

func (m EditCustomer) prefill(ctx context.Context, store CustomerStore, d *Draft) error {
	customer, err := store.GetCustomer(ctx, m.CustomerID)
	if err != nil {
		return err
	}
	accountType := customer.CustomerType
	if accountType == "" {
		accountType = models.AccountIndividual
		if customer.IsCorporate {
			accountType = models.AccountCorporate
		}
	}
	d.Account.AccountType = accountType
	d.Customer = CustomerInfoForm{
		FirstName:   customer.FirstName,
		LastName:    customer.LastName,
		PhoneNumber: customer.PhoneNumber,
		Email:       customer.Email,
		Address:     customer.Address,
		HouseNumber: customer.HouseNumber,
		State:       customer.State,
		Country:     customer.Country,
		DateOfBirth: customer.DateOfBirth,
		Sex:         customer.Sex,
	}
	d.Corporate = CorporateInfoForm{
		CompanyName: customer.CompanyName,
		PhoneNumber: customer.PhoneNumber,
		Email:       customer.Email,
		Address:     customer.Address,
		HouseNumber: customer.HouseNumber,
		State:       customer.State,
		Country:     customer.Country,
		TINNumber:   customer.TINNumber,
	}
	return nil
}

func (m EditCustomer) submit(ctx context.Context, store CustomerStore, d Draft) (*Outcome, error) {
	customer, err := store.UpdateCustomer(ctx, m.CustomerID, updatePayload(d))
	if err != nil {
		return nil, err
	}
	return &Outcome{CustomerID: m.CustomerID, Customer: customer, Redirect: customerPath(m.CustomerID)}, nil
}

// AddVehicle registers another car under an existing customer.
type AddVehicle struct {
	CustomerID int64
}

func (AddVehicle) Name() string { return "add-vehicle" }

func (AddVehicle) Steps(*Draft) []StepKey { return vehicleSteps }

func (m AddVehicle) prefill(ctx context.Context, store CustomerStore, d *Draft) error {
	customer, err := store.GetCustomer(ctx, m.CustomerID)
	if err != nil {
		return err
	}
	if customer.IsCorporate || customer.CustomerType == models.AccountCorporate {
		d.Account.AccountType = models.AccountCorporate
	}
	return nil
}

func (m AddVehicle) submit(ctx context.Context, store CustomerStore, d Draft) (*Outcome, error) {
	car, err := store.AddCar(ctx, m.CustomerID, carPayload(d))
	if err != nil {
		return nil, err
	}
	return &Outcome{CustomerID: m.CustomerID, Car: car, Redirect: customerPath(m.CustomerID)}, nil
}

func individualPayload(d Draft) models.IndividualOnboarding {
	return models.IndividualOnboarding{
		FirstName:    d.Customer.FirstName,
		LastName:     d.Customer.LastName,
		PhoneNumber:  d.Customer.PhoneNumber,
		Email:        d.Customer.Email,
		Address:      d.Customer.Address,
		HouseNumber:  d.Customer.HouseNumber,
		State:        d.Customer.State,
		Country:      d.Customer.Country,
		DateOfBirth:  d.Customer.DateOfBirth,
		Sex:          d.Customer.Sex,
		CarType:      d.CarType.CarType,
		CarMake:      d.CarMake.CarMake,
		CarMakeText:  d.CarMake.CarMakeText,
		CarModel:     d.Details.CarModel,
		CarModelText: d.Details.CarModelText,
		PlateNumber:  d.License.PlateNumber,
		Year:         d.Details.Year,
		Color:        d.Details.Color,
		Mileage:      d.Details.Mileage,
	}
}

func corporatePayload(d Draft) models.CorporateOnboarding {
	cars := make([]models.CorporateCar, 0, len(d.Fleet))
	for _, row := range d.Fleet {
		c := row.Car
		cars = append(cars, models.CorporateCar{
			Make:           c.Make,
			Model:          c.Model,
			MakeText:       c.MakeText,
			ModelText:      c.ModelText,
			CarType:        c.CarType,
			PlateNumber:    c.PlateNumber,
			Year:           c.Year,
			Color:          c.Color,
			Mileage:        c.Mileage,
			CorporateCarID: c.CorporateCarID,
		})
	}
	return models.CorporateOnboarding{
		CompanyName: d.Corporate.CompanyName,
		PhoneNumber: d.Corporate.PhoneNumber,
		Email:       d.Corporate.Email,
		Address:     d.Corporate.Address,
		HouseNumber: d.Corporate.HouseNumber,
		State:       d.Corporate.State,
		Country:     d.Corporate.Country,
		TINNumber:   d.Corporate.TINNumber,
		Cars:        cars,
	}
}

func updatePayload(d Draft) models.CustomerUpdate {
	if d.corporate() {
		return models.CustomerUpdate{
			CompanyName: d.Corporate.CompanyName,
			TINNumber:   d.Corporate.TINNumber,
			PhoneNumber: d.Corporate.PhoneNumber,
			Email:       d.Corporate.Email,
			Address:     d.Corporate.Address,
			HouseNumber: d.Corporate.HouseNumber,
			State:       d.Corporate.State,
			Country:     d.Corporate.Country,
		}
	}
	return models.CustomerUpdate{
		FirstName:   d.Customer.FirstName,
		LastName:    d.Customer.LastName,
		PhoneNumber: d.Customer.PhoneNumber,
		Email:       d.Customer.Email,
		Address:     d.Customer.Address,
		HouseNumber: d.Customer.HouseNumber,
		State:       d.Customer.State,
		Country:     d.Customer.Country,
		DateOfBirth: d.Customer.DateOfBirth,
		Sex:         d.Customer.Sex,
	}
}

func carPayload(d Draft) models.NewCar {
	return models.NewCar{
		CarType:     d.CarType.CarType,
		Make:        d.CarMake.CarMake,
		MakeText:    d.CarMake.CarMakeText,
		Model:       d.Details.CarModel,
		ModelText:   d.Details.CarModelText,
		PlateNumber: d.License.PlateNumber,
		Year:        d.Details.Year,
		Color:       d.Details.Color,
		Mileage:     d.Details.Mileage,
	}
}
