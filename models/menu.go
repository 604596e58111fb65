package models

import "github.com/shopspring/decimal"

// Defaults substituted for NULL catalog columns.
const (
	DefaultImage    = "/placeholder.svg"
	DefaultCategory = "Main"
	DefaultWaitTime = "15-20 min"
	DefaultRating   = 4.5
)

type Restaurant struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	Cuisine     string  `json:"cuisine"`
	WaitTime    string  `json:"wait_time"`
	Rating      float64 `json:"rating"`
}

// MenuItem is the catalog view of a dish. Stock is the remaining count last
// read from the backend; the backend stays authoritative for it.
type MenuItem struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image"`
	Category     string          `json:"category"`
	Available    bool            `json:"available"`
	Stock        int             `json:"stock"`
}

// MenuItemUpdate carries a partial update; nil fields are left untouched.
type MenuItemUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Image       *string
	Category    *string
	Available   *bool
	Stock       *int
}
