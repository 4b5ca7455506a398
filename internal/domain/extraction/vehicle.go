package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// ExtractedVehicle is one vehicle configuration read from a dealer price list.
// It has no stored identity; make+model+variant+key specs identify it.
type ExtractedVehicle struct {
	Make                string           `json:"make"`
	Model               string           `json:"model"`
	Variant             string           `json:"variant"`
	Horsepower          int              `json:"horsepower,omitempty"`
	Transmission        string           `json:"transmission,omitempty"`
	FuelType            string           `json:"fuel_type,omitempty"`
	BodyType            string           `json:"body_type,omitempty"`
	MonthlyPrice        float64          `json:"monthly_price,omitempty"`
	EngineSpecification string           `json:"engine_specification,omitempty"`
	Offers              []ExtractedOffer `json:"offers"`
}

// ExtractedOffer is one leasing price point as printed in the price list.
type ExtractedOffer struct {
	MonthlyPrice   float64 `json:"monthly_price"`
	PeriodMonths   int     `json:"period_months"`
	MileagePerYear int     `json:"mileage_per_year,omitempty"`
	FirstPayment   float64 `json:"first_payment,omitempty"`
	TotalPrice     float64 `json:"total_price,omitempty"`
}

var ErrInvalidVehicle = errors.New("invalid extracted vehicle")

// Validate checks the fields required to classify and apply the record.
func (v ExtractedVehicle) Validate() error {
	var problems []string
	if strings.TrimSpace(v.Make) == "" {
		problems = append(problems, "missing make")
	}
	if strings.TrimSpace(v.Model) == "" {
		problems = append(problems, "missing model")
	}
	if len(v.Offers) == 0 {
		problems = append(problems, "no offers present")
	}
	for i, o := range v.Offers {
		if o.MonthlyPrice <= 0 {
			problems = append(problems, fmt.Sprintf("offer %d: monthly_price must be > 0", i))
		}
		if o.PeriodMonths <= 0 {
			problems = append(problems, fmt.Sprintf("offer %d: period_months must be > 0", i))
		}
	}
	if v.Horsepower < 0 {
		problems = append(problems, "horsepower must be >= 0")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidVehicle, strings.Join(problems, "; "))
}

// EffectiveMonthlyPrice is the cheapest offer, falling back to the headline price.
func (v ExtractedVehicle) EffectiveMonthlyPrice() float64 {
	min := 0.0
	for i, o := range v.Offers {
		if i == 0 || o.MonthlyPrice < min {
			min = o.MonthlyPrice
		}
	}
	if min > 0 {
		return min
	}
	return v.MonthlyPrice
}

// VariantKey renders a readable fingerprint such as "aygox_active_72hp_automatic".
func (v ExtractedVehicle) VariantKey() string {
	model := strings.NewReplacer(" ", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(v.Model)))
	variant := strings.Join(strings.Fields(strings.ToLower(v.Variant)), "_")
	key := model
	if variant != "" {
		key += "_" + variant
	}
	if v.Horsepower > 0 {
		key += fmt.Sprintf("_%dhp", v.Horsepower)
	}
	if t := strings.ToLower(strings.TrimSpace(v.Transmission)); t != "" {
		key += "_" + strings.ReplaceAll(t, " ", "")
	}
	return key
}

// Fingerprint identifies a vehicle configuration within one seller's price list:
// make plus VariantKey plus fuel. Two records with the same fingerprint would
// compete for the same listing.
func (v ExtractedVehicle) Fingerprint() string {
	return strings.ToLower(strings.TrimSpace(v.Make)) + "|" + v.VariantKey() + "|" + strings.ToLower(strings.TrimSpace(v.FuelType))
}
