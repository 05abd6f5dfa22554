package onboarding

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/example/washops/backend/internal/models"
	"github.com/example/washops/backend/internal/validation"
)

const defaultCountry = "Ethiopia"

// AccountTypeForm backs the account step.
type AccountTypeForm struct {
	AccountType models.AccountType `json:"account_type" validate:"required,oneof=INDIVIDUAL CORPORATE"`
}

// CustomerInfoForm backs the customer step for individual accounts.
type CustomerInfoForm struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Address     string `json:"address,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Sex         string `json:"sex,omitempty" validate:"omitempty,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
}

func (f *CustomerInfoForm) normalize() {
	trim(&f.FirstName, &f.LastName, &f.PhoneNumber, &f.Email, &f.Address, &f.HouseNumber, &f.State, &f.Country, &f.DateOfBirth, &f.Sex)
}

// CorporateInfoForm backs the customer step for corporate accounts.
type CorporateInfoForm struct {
	CompanyName string `json:"company_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	Address     string `json:"address,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
	State       string `json:"state,omitempty"`
	Country     string `json:"country,omitempty"`
	TINNumber   string `json:"tin_number,omitempty"`
}

func (f *CorporateInfoForm) normalize() {
	trim(&f.CompanyName, &f.PhoneNumber, &f.Email, &f.Address, &f.HouseNumber, &f.State, &f.Country, &f.TINNumber)
}

// CarTypeForm backs the car type step.
type CarTypeForm struct {
	CarType models.CarType `json:"car_type" validate:"required,oneof=SEDAN SUV VAN TRUCK COUPE HATCHBACK WAGON CONVERTIBLE OTHER"`
}

// CarMakeForm backs the car make step. A catalog id or free text is required.
type CarMakeForm struct {
	CarMake     int64  `json:"car_make,omitempty" validate:"required_without=CarMakeText"`
	CarMakeText string `json:"car_make_text,omitempty"`
}

// CarDetailsForm backs the car details step.
type CarDetailsForm struct {
	CarModel     int64  `json:"car_model,omitempty" validate:"required_without=CarModelText"`
	CarModelText string `json:"car_model_text,omitempty"`
	Year         int    `json:"year,omitempty" validate:"omitempty,min=1900,notfutureyear"`
	Color        string `json:"color,omitempty"`
	Mileage      int    `json:"mileage,omitempty" validate:"omitempty,min=0"`
}

// LicensePlateForm backs the license plate step.
type LicensePlateForm struct {
	PlateNumber string `json:"plate_number" validate:"required"`
}

// CarDraft is one row of a corporate fleet.
type CarDraft struct {
	Make           int64          `json:"make,omitempty"`
	Model          int64          `json:"model,omitempty"`
	MakeText       string         `json:"make_text,omitempty"`
	ModelText      string         `json:"model_text,omitempty"`
	CarType        models.CarType `json:"car_type,omitempty" validate:"omitempty,oneof=SEDAN SUV VAN TRUCK COUPE HATCHBACK WAGON CONVERTIBLE OTHER"`
	PlateNumber    string         `json:"plate_number" validate:"required"`
	Year           int            `json:"year,omitempty" validate:"omitempty,min=1900,notfutureyear"`
	Color          string         `json:"color,omitempty"`
	Mileage        int            `json:"mileage,omitempty" validate:"omitempty,min=0"`
	CorporateCarID string         `json:"corporate_car_id,omitempty"`
}

func (c *CarDraft) normalize() {
	trim(&c.MakeText, &c.ModelText, &c.PlateNumber, &c.Color, &c.CorporateCarID)
}

// CarRow is a fleet row with its own model lookup.
type CarRow struct {
	ID     uuid.UUID         `json:"id"`
	Car    CarDraft          `json:"car"`
	Models []models.CarModel `json:"models"`

	loading bool
}

// Draft is the transient onboarding data, keyed by step. It is never persisted
// before submission.
type Draft struct {
	Account   AccountTypeForm   `json:"account"`
	Customer  CustomerInfoForm  `json:"customer"`
	Corporate CorporateInfoForm `json:"corporate"`
	CarType   CarTypeForm       `json:"carType"`
	CarMake   CarMakeForm       `json:"carMake"`
	Details   CarDetailsForm    `json:"carDetails"`
	License   LicensePlateForm  `json:"license"`
	Fleet     []*CarRow         `json:"fleet"`
}

func newDraft() Draft {
	return Draft{
		Account:   AccountTypeForm{AccountType: models.AccountIndividual},
		Customer:  CustomerInfoForm{Country: defaultCountry},
		Corporate: CorporateInfoForm{Country: defaultCountry},
		Fleet:     []*CarRow{{ID: uuid.New()}},
	}
}

func (d *Draft) corporate() bool {
	return d.Account.AccountType == models.AccountCorporate
}

// clone copies the draft deeply enough that a pending submission cannot observe
// later edits.
func (d *Draft) clone() Draft {
	cp := *d
	cp.Fleet = make([]*CarRow, len(d.Fleet))
	for i, row := range d.Fleet {
		r := *row
		r.Models = append([]models.CarModel(nil), row.Models...)
		cp.Fleet[i] = &r
	}
	return cp
}

func (d *Draft) row(id uuid.UUID) (int, *CarRow) {
	for i, r := range d.Fleet {
		if r.ID == id {
			return i, r
		}
	}
	return -1, nil
}

func validateFleet(rows []*CarRow) validation.Violations {
	v := validation.Violations{}
	if len(rows) == 0 {
		v["cars"] = "required"
		return v
	}
	for i, row := range rows {
		v.Merge("cars["+strconv.Itoa(i)+"].", validation.Struct(row.Car))
	}
	return v
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
