package models

import "fmt"

type Contact struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required"`
}

// Trip dates are calendar dates in YYYY-MM-DD form.
type Trip struct {
	Nationality    string `json:"nationality" validate:"required"`
	Destination    string `json:"destination" validate:"required"`
	DepartureDate  string `json:"departureDate" validate:"required,datetime=2006-01-02,notpast"`
	ReturnDate     string `json:"returnDate,omitempty" validate:"omitempty,datetime=2006-01-02,afterdate=DepartureDate"`
	Travelers      int    `json:"travelers" validate:"min=1"`
	PassportExpiry string `json:"passportExpiry,omitempty" validate:"omitempty,datetime=2006-01-02,passportvalid=DepartureDate"`
}

// Plan is a service tier. Prices are in minor units.
type Plan struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    int64    `json:"price"`
	Features []string `json:"features"`
	SLADays  int      `json:"slaDays"`
}

type AddOn struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int64  `json:"price"`
	MaxQuantity int    `json:"maxQuantity"`
}

type SelectedAddOn struct {
	AddOn    AddOn `json:"addOn"`
	Quantity int   `json:"quantity"`
}

// BookingDraft is the in-progress state of one booking wizard.
type BookingDraft struct {
	Contact        Contact         `json:"contact"`
	Trip           Trip            `json:"trip"`
	SelectedPlan   *Plan           `json:"selectedPlan,omitempty"`
	SelectedAddOns []SelectedAddOn `json:"selectedAddOns"`
}

func (d *BookingDraft) AddonsTotal() int64 {
	var total int64
	for _, s := range d.SelectedAddOns {
		total += s.AddOn.Price * int64(s.Quantity)
	}
	return total
}

func (d *BookingDraft) TotalAmount() int64 {
	var plan int64
	if d.SelectedPlan != nil {
		plan = d.SelectedPlan.Price
	}
	return plan + d.AddonsTotal()
}

// Clone returns a deep copy safe to hand to another goroutine.
func (d *BookingDraft) Clone() BookingDraft {
	cp := *d
	if d.SelectedPlan != nil {
		plan := *d.SelectedPlan
		plan.Features = append([]string(nil), d.SelectedPlan.Features...)
		cp.SelectedPlan = &plan
	}
	cp.SelectedAddOns = append([]SelectedAddOn(nil), d.SelectedAddOns...)
	return cp
}

// FormatMinor renders minor units as a decimal amount, e.g. 69700 -> "697.00".
func FormatMinor(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
