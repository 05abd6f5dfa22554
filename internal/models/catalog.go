package models

import "github.com/shopspring/decimal"

// Service is an entry of the tenant's service catalog.
type Service struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Price           decimal.Decimal `json:"price"`
	DurationMinutes int             `json:"duration_minutes,omitempty"`
	Category        int64           `json:"category,omitempty"`
	IsActive        bool            `json:"is_active"`
}

// Staff is a member of the shop's workforce.
type Staff struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	FullName    string `json:"full_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Title       string `json:"title,omitempty"`
	IsManager   bool   `json:"is_manager"`
	IsActive    bool   `json:"is_active"`
}
