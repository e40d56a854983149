package models

import (
	"errors"
	"time"
)

// ItemCategory classifies a reported item.
type ItemCategory string

const (
	// CategoryBicycle covers bicycles and e-bikes.
	CategoryBicycle ItemCategory = "bicycle"
	// CategoryPhone covers mobile phones.
	CategoryPhone ItemCategory = "phone"
	// CategoryLaptop covers laptops and tablets.
	CategoryLaptop ItemCategory = "laptop"
	// CategoryVehicle covers cars and motorcycles.
	CategoryVehicle ItemCategory = "vehicle"
	// CategoryOther covers everything else.
	CategoryOther ItemCategory = "other"
)

// IsValidItemCategory checks if the given category is supported.
func IsValidItemCategory(c ItemCategory) bool {
	switch c {
	case CategoryBicycle, CategoryPhone, CategoryLaptop, CategoryVehicle, CategoryOther:
		return true
	default:
		return false
	}
}

// ItemStatus represents the lifecycle status of a reported item.
type ItemStatus string

const (
	// ItemStatusActive means the report is live and matchable.
	ItemStatusActive ItemStatus = "active"
	// ItemStatusRecovered means the item was recovered by its owner.
	ItemStatusRecovered ItemStatus = "recovered"
	// ItemStatusDeleted means the report was withdrawn.
	ItemStatusDeleted ItemStatus = "deleted"
)

// Error variables for item report validation.
var (
	ErrEmptyReporter    = errors.New("reporter cannot be empty")
	ErrInvalidCategory  = errors.New("invalid item category")
	ErrEmptyDescription = errors.New("description cannot be empty")
)

// ItemReport represents one reported stolen item.
type ItemReport struct {
	ID          string       `json:"id"`
	Reporter    string       `json:"reporter"` // user id of the reporting user
	Category    ItemCategory `json:"category"`
	Description string       `json:"description"`
	Location    string       `json:"location,omitempty"`
	StolenAt    *time.Time   `json:"stolen_at,omitempty"`
	Status      ItemStatus   `json:"status"`
	Reference   string       `json:"reference,omitempty"` // police reference, if provided
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Validate checks that an item report carries the required fields.
func (r *ItemReport) Validate() error {
	if r.Reporter == "" {
		return ErrEmptyReporter
	}
	if !IsValidItemCategory(r.Category) {
		return ErrInvalidCategory
	}
	if r.Description == "" {
		return ErrEmptyDescription
	}
	return nil
}

// ItemQuery describes a search over reported items. Matching is simple
// keyword/category matching; anything smarter lives outside this system.
type ItemQuery struct {
	Category ItemCategory `json:"category,omitempty"`
	Keywords []string     `json:"keywords,omitempty"`
	Reporter string       `json:"reporter,omitempty"`
	Limit    int          `json:"limit,omitempty"`
}

// SupportTicket represents a user's request for human support.
type SupportTicket struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
