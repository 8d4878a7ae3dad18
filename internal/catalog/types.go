package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Category groups services on the public site and picks their icon.
type Category string

const (
	CategoryACRepair        Category = "AC Repair"
	CategoryACInstallation  Category = "AC Installation"
	CategoryACGasRefilling  Category = "AC Gas Refilling"
	CategoryACMaintenance   Category = "AC Maintenance"
	CategoryElectrical      Category = "Electrical"
	CategoryWiring          Category = "Wiring"
	CategoryFanRepair       Category = "Fan Repair"
	CategoryInverterService Category = "Inverter Service"
	CategoryOther           Category = "Other"
)

// Categories lists every accepted category in display order.
var Categories = []Category{
	CategoryACRepair,
	CategoryACInstallation,
	CategoryACGasRefilling,
	CategoryACMaintenance,
	CategoryElectrical,
	CategoryWiring,
	CategoryFanRepair,
	CategoryInverterService,
	CategoryOther,
}

var categoryIcons = map[Category]string{
	CategoryACRepair:        "fa-wrench",
	CategoryACInstallation:  "fa-home",
	CategoryACGasRefilling:  "fa-gas-pump",
	CategoryACMaintenance:   "fa-cog",
	CategoryElectrical:      "fa-bolt",
	CategoryWiring:          "fa-plug",
	CategoryFanRepair:       "fa-fan",
	CategoryInverterService: "fa-battery-half",
	CategoryOther:           "fa-tools",
}

// FallbackIcon is used for categories outside the table.
const FallbackIcon = "fa-tools"

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryIcons[c]
	return ok
}

// Icon returns the icon class for c.
func (c Category) Icon() string {
	if icon, ok := categoryIcons[c]; ok {
		return icon
	}
	return FallbackIcon
}

// Status controls whether a service appears on the public listing.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusAvailable || s == StatusUnavailable
}

// DefaultPrice is shown when a service has no price text.
const DefaultPrice = "Contact for pricing"

// ProductType is a named price tier offered under one service.
type ProductType struct {
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
}

// Service is one entry of the catalog.
type Service struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Category     Category      `json:"category"`
	Description  string        `json:"description"`
	Price        string        `json:"price"`
	Image        string        `json:"image"`
	Images       []string      `json:"images"`
	Keywords     string        `json:"keywords"`
	Features     []string      `json:"features"`
	ProductTypes []ProductType `json:"productTypes"`
	Status       Status        `json:"status"`
	CreatedAt    time.Time     `json:"createdAt,omitzero"`
	UpdatedAt    time.Time     `json:"updatedAt,omitzero"`
}

// Patch carries a partial update. Nil fields keep the stored value.
type Patch struct {
	Name         *string
	Category     *Category
	Description  *string
	Price        *string
	Keywords     *string
	Status       *Status
	Image        *string
	Features     *[]string
	ProductTypes *[]ProductType
}

// Stats summarises the catalog for the admin dashboard.
type Stats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
	Categories  int `json:"categories"`
}

var (
	// ErrNotFound is returned when no service has the requested id.
	ErrNotFound = errors.New("service not found")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid service")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
