package onboarding

import "github.com/example/washops/backend/internal/validation"

// StepKey names a wizard step.
type StepKey string

const (
	StepAccount    StepKey = "account"
	StepCustomer   StepKey = "customer"
	StepCarType    StepKey = "carType"
	StepCarMake    StepKey = "carMake"
	StepCarDetails StepKey = "carDetails"
	StepLicense    StepKey = "license"
	StepFleet      StepKey = "fleet"
	StepComplete   StepKey = "complete"
)

var stepLabels = map[StepKey]string{
	StepAccount:    "Account Type",
	StepCustomer:   "Customer Info",
	StepCarType:    "Car Type",
	StepCarMake:    "Car Make",
	StepCarDetails: "Car Details",
	StepLicense:    "License Plate",
	StepFleet:      "Vehicles",
	StepComplete:   "Complete",
}

// Label is the human readable title of the step.
func (k StepKey) Label() string { return stepLabels[k] }

// check validates the form bound to a step. An empty result means the step is complete.
func (k StepKey) check(d *Draft) validation.Violations {
	switch k {
	case StepAccount:
		return validation.Struct(d.Account)
	case StepCustomer:
		if d.corporate() {
			return validation.Struct(d.Corporate)
		}
		return validation.Struct(d.Customer)
	case StepCarType:
		return validation.Struct(d.CarType)
	case StepCarMake:
		return validation.Struct(d.CarMake)
	case StepCarDetails:
		return validation.Struct(d.Details)
	case StepLicense:
		return validation.Struct(d.License)
	case StepFleet:
		return validateFleet(d.Fleet)
	default:
		return validation.Violations{}
	}
}

var (
	individualSteps = []StepKey{StepAccount, StepCustomer, StepCarType, StepCarMake, StepCarDetails, StepLicense, StepComplete}
	corporateSteps  = []StepKey{StepAccount, StepCustomer, StepFleet, StepComplete}
	editSteps       = []StepKey{StepCustomer}
	vehicleSteps    = []StepKey{StepCarType, StepCarMake, StepCarDetails, StepLicense, StepComplete}
)

// StepStatus is the position of a step relative to the current one.
type StepStatus string

const (
	StatusComplete StepStatus = "complete"
	StatusCurrent  StepStatus = "current"
	StatusPending  StepStatus = "pending"
)
