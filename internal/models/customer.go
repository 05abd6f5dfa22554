package models

import "time"

// AccountType distinguishes individual customers from corporate accounts.
type AccountType string

const (
	AccountIndividual AccountType = "INDIVIDUAL"
	AccountCorporate  AccountType = "CORPORATE"
)

// CarType enumerates the body types the backend accepts.
type CarType string

const (
	CarTypeSedan       CarType = "SEDAN"
	CarTypeSUV         CarType = "SUV"
	CarTypeVan         CarType = "VAN"
	CarTypeTruck       CarType = "TRUCK"
	CarTypeCoupe       CarType = "COUPE"
	CarTypeHatchback   CarType = "HATCHBACK"
	CarTypeWagon       CarType = "WAGON"
	CarTypeConvertible CarType = "CONVERTIBLE"
	CarTypeOther       CarType = "OTHER"
)

// Customer is the summary shape returned by search and list endpoints.
type Customer struct {
	ID           int64       `json:"id"`
	CustomerType AccountType `json:"customer_type,omitempty"`
	FirstName    string      `json:"first_name,omitempty"`
	LastName     string      `json:"last_name,omitempty"`
	FullName     string      `json:"full_name,omitempty"`
	CompanyName  string      `json:"company_name,omitempty"`
	PhoneNumber  string      `json:"phone_number"`
	Email        string      `json:"email,omitempty"`
	IsCorporate  bool        `json:"is_corporate"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
}

// DisplayName picks the most specific human readable name available.
func (c Customer) DisplayName() string {
	switch {
	case c.IsCorporate && c.CompanyName != "":
		return c.CompanyName
	case c.FullName != "":
		return c.FullName
	case c.FirstName != "" || c.LastName != "":
		if c.LastName == "" {
			return c.FirstName
		}
		if c.FirstName == "" {
			return c.LastName
		}
		return c.FirstName + " " + c.LastName
	default:
		return c.PhoneNumber
	}
}

// CustomerDetail is the full customer record including its cars.
type CustomerDetail struct {
	ID           int64       `json:"id"`
	CustomerType AccountType `json:"customer_type"`
	IsCorporate  bool        `json:"is_corporate"`
	PhoneNumber  string      `json:"phone_number"`
	Email        string      `json:"email,omitempty"`
	Address      string      `json:"address,omitempty"`
	HouseNumber  string      `json:"house_number,omitempty"`
	State        string      `json:"state,omitempty"`
	Country      string      `json:"country,omitempty"`
	QRCode       string      `json:"qr_code,omitempty"`
	FirstName    string      `json:"first_name,omitempty"`
	LastName     string      `json:"last_name,omitempty"`
	FullName     string      `json:"full_name,omitempty"`
	DateOfBirth  string      `json:"date_of_birth,omitempty"`
	Sex          string      `json:"sex,omitempty"`
	CompanyName  string      `json:"company_name,omitempty"`
	TINNumber    string      `json:"tin_number,omitempty"`
	Cars         []Car       `json:"cars,omitempty"`
	CreatedAt    *time.Time  `json:"created_at,omitempty"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
}

// Car belongs to exactly one customer.
type Car struct {
	ID          int64   `json:"id"`
	Customer    int64   `json:"customer,omitempty"`
	Make        string  `json:"make"`
	Model       string  `json:"model"`
	PlateNumber string  `json:"plate_number"`
	Color       string  `json:"color,omitempty"`
	Year        int     `json:"year,omitempty"`
	CarType     CarType `json:"car_type,omitempty"`
}

// CarMake is a catalog entry for vehicle manufacturers.
type CarMake struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	LogoURL     string `json:"logo_url,omitempty"`
	IsActive    bool   `json:"is_active"`
	ModelsCount int    `json:"models_count,omitempty"`
}

// CarModel is a catalog entry scoped to one make.
type CarModel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IndividualOnboarding is the body of POST /customers/onboard_individual/.
type IndividualOnboarding struct {
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	PhoneNumber  string  `json:"phone_number"`
	Email        string  `json:"email,omitempty"`
	Address      string  `json:"address,omitempty"`
	HouseNumber  string  `json:"house_number,omitempty"`
	State        string  `json:"state,omitempty"`
	Country      string  `json:"country,omitempty"`
	DateOfBirth  string  `json:"date_of_birth,omitempty"`
	Sex          string  `json:"sex,omitempty"`
	CarType      CarType `json:"car_type"`
	CarMake      int64   `json:"car_make,omitempty"`
	CarModel     int64   `json:"car_model,omitempty"`
	CarMakeText  string  `json:"car_make_text,omitempty"`
	CarModelText string  `json:"car_model_text,omitempty"`
	PlateNumber  string  `json:"plate_number"`
	Year         int     `json:"year,omitempty"`
	Color        string  `json:"color,omitempty"`
	Mileage      int     `json:"mileage,omitempty"`
}

// CorporateCar is one fleet vehicle inside a corporate onboarding request.
type CorporateCar struct {
	Make           int64   `json:"make,omitempty"`
	Model          int64   `json:"model,omitempty"`
	MakeText       string  `json:"make_text,omitempty"`
	ModelText      string  `json:"model_text,omitempty"`
	CarType        CarType `json:"car_type,omitempty"`
	PlateNumber    string  `json:"plate_number"`
	Year           int     `json:"year,omitempty"`
	Color          string  `json:"color,omitempty"`
	Mileage        int     `json:"mileage,omitempty"`
	CorporateCarID string  `json:"corporate_car_id,omitempty"`
}

// CorporateOnboarding is the body of POST /customers/onboard_corporate/.
type CorporateOnboarding struct {
	CompanyName string         `json:"company_name"`
	PhoneNumber string         `json:"phone_number"`
	Email       string         `json:"email,omitempty"`
	Address     string         `json:"address,omitempty"`
	HouseNumber string         `json:"house_number,omitempty"`
	State       string         `json:"state,omitempty"`
	Country     string         `json:"country,omitempty"`
	TINNumber   string         `json:"tin_number,omitempty"`
	Cars        []CorporateCar `json:"cars"`
}

// NewCar is the body of POST /customers/{id}/add_car/.
type NewCar struct {
	CarType     CarType `json:"car_type"`
	Make        int64   `json:"make,omitempty"`
	Model       int64   `json:"model,omitempty"`
	MakeText    string  `json:"make_text,omitempty"`
	ModelText   string  `json:"model_text,omitempty"`
	PlateNumber string  `json:"plate_number"`
	Year        int     `json:"year,omitempty"`
	Color       string  `json:"color,omitempty"`
	Mileage     int     `json:"mileage,omitempty"`
}

// CustomerUpdate is the partial body of PATCH /customers/{id}/.
// Only customer-info fields are ever sent.
type CustomerUpdate struct {
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	TINNumber   string `json:"tin_number,omitempty"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	HouseNumber string `json:"house_number"`
	State       string `json:"state"`
	Country     string `json:"country"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Sex         string `json:"sex,omitempty"`
}
