package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/washops/backend/internal/models"
)

// SearchCustomers runs a free-text search over name, phone, email and plate.
func (c *Client) SearchCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("type", "all")
	return list[models.Customer](ctx, c, "/customers/search/", q)
}

// GetCustomer returns the full customer record.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*models.CustomerDetail, error) {
	var customer models.CustomerDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/customers/%d/", id), nil, nil, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerCars lists the vehicles registered to a customer.
func (c *Client) CustomerCars(ctx context.Context, customerID int64) ([]models.Car, error) {
	return list[models.Car](ctx, c, fmt.Sprintf("/customers/%d/cars/", customerID), nil)
}

// OnboardIndividual creates an individual customer together with their first car.
func (c *Client) OnboardIndividual(ctx context.Context, payload models.IndividualOnboarding) (*models.CustomerDetail, error) {
	var customer models.CustomerDetail
	if err := c.do(ctx, http.MethodPost, "/customers/onboard_individual/", nil, payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// OnboardCorporate creates a corporate customer together with its fleet.
func (c *Client) OnboardCorporate(ctx context.Context, payload models.CorporateOnboarding) (*models.CustomerDetail, error) {
	var customer models.CustomerDetail
	if err := c.do(ctx, http.MethodPost, "/customers/onboard_corporate/", nil, payload, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// AddCar registers another vehicle under an existing customer.
func (c *Client) AddCar(ctx context.Context, customerID int64, car models.NewCar) (*models.Car, error) {
	var created models.Car
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/customers/%d/add_car/", customerID), nil, car, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateCustomer partially updates a customer's info fields.
func (c *Client) UpdateCustomer(ctx context.Context, id int64, patch models.CustomerUpdate) (*models.CustomerDetail, error) {
	var customer models.CustomerDetail
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/customers/%d/", id), nil, patch, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// CarMakes lists the make catalog.
func (c *Client) CarMakes(ctx context.Context) ([]models.CarMake, error) {
	return list[models.CarMake](ctx, c, "/car-makes/", nil)
}

// ModelsForMake lists the models of one make.
func (c *Client) ModelsForMake(ctx context.Context, makeID int64) ([]models.CarModel, error) {
	return list[models.CarModel](ctx, c, fmt.Sprintf("/car-makes/%d/models/", makeID), nil)
}
