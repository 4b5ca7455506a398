package leaseprice

import (
	"regexp"
	"strconv"
	"strings"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
)

var horsepowerPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:hk|hp)\b`)

// Horsepower reads "1.0 benzin 72 hk" or "73.1 kWh, 343 hk AWD". 0 when absent.
func Horsepower(engineSpec string) int {
	m := horsepowerPattern.FindStringSubmatch(engineSpec)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Transmission prefers the explicit field; otherwise "automatgear" in the engine
// text means automatic and a plain petrol engine means manual.
func Transmission(field, engineSpec string) string {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "auto", "automatic", "automatisk", "automatgear":
		return "Automatic"
	case "manual", "manuel", "manuelt":
		return "Manual"
	}
	spec := strings.ToLower(engineSpec)
	switch {
	case strings.Contains(spec, "automatgear"):
		return "Automatic"
	case strings.Contains(spec, "benzin"), strings.Contains(spec, "diesel"):
		return "Manual"
	}
	return ""
}

// FuelType maps the powertrain or engine text to the reference vocabulary.
func FuelType(powertrain, engineSpec string) string {
	switch strings.ToLower(strings.TrimSpace(powertrain)) {
	case "gasoline", "petrol", "benzin":
		return "Benzin"
	case "diesel":
		return "Diesel"
	case "electric", "ev", "el":
		return "El"
	case "hybrid", "plugin_hybrid", "plug-in hybrid", "phev":
		return "Hybrid"
	}
	spec := strings.ToLower(engineSpec)
	switch {
	case strings.Contains(spec, "hybrid"):
		return "Hybrid"
	case strings.Contains(spec, "kwh"):
		return "El"
	case strings.Contains(spec, "diesel"):
		return "Diesel"
	case strings.Contains(spec, "benzin"):
		return "Benzin"
	}
	return ""
}

// Flatten emits one ExtractedVehicle per distinct variant. Rows that repeat a
// variant (same fingerprint) contribute their pricing as additional offers.
func Flatten(doc *Document) []types.ExtractedVehicle {
	if doc == nil {
		return nil
	}
	brand := strings.TrimSpace(doc.Info.Brand)
	var out []types.ExtractedVehicle
	index := map[string]int{}
	for _, v := range doc.Vehicles {
		for _, variant := range v.Variants {
			ev := types.ExtractedVehicle{
				Make:                brand,
				Model:               strings.TrimSpace(v.Model),
				Variant:             strings.TrimSpace(variant.Name),
				Horsepower:          Horsepower(variant.EngineSpecification),
				Transmission:        Transmission(variant.Transmission, variant.EngineSpecification),
				FuelType:            FuelType(v.PowertrainType, variant.EngineSpecification),
				EngineSpecification: strings.TrimSpace(variant.EngineSpecification),
			}
			offer, ok := offerOf(v, variant.Pricing)
			key := ev.VariantKey() + "|" + strings.ToLower(ev.FuelType)
			if i, seen := index[key]; seen {
				if ok && !hasOffer(out[i].Offers, offer) {
					out[i].Offers = append(out[i].Offers, offer)
					out[i].MonthlyPrice = out[i].EffectiveMonthlyPrice()
				}
				continue
			}
			if ok {
				ev.Offers = []types.ExtractedOffer{offer}
			}
			ev.MonthlyPrice = variant.Pricing.MonthlyPayment.Float()
			index[key] = len(out)
			out = append(out, ev)
		}
	}
	return out
}

func offerOf(v Vehicle, p Pricing) (types.ExtractedOffer, bool) {
	if p.MonthlyPayment <= 0 {
		return types.ExtractedOffer{}, false
	}
	return types.ExtractedOffer{
		MonthlyPrice:   p.MonthlyPayment.Float(),
		PeriodMonths:   v.LeasePeriodMonths.Int(),
		MileagePerYear: p.AnnualKilometers.Int(),
		FirstPayment:   p.FirstPayment.Float(),
		TotalPrice:     p.TotalCost.Float(),
	}, true
}

func hasOffer(offers []types.ExtractedOffer, o types.ExtractedOffer) bool {
	for _, x := range offers {
		if x.MonthlyPrice == o.MonthlyPrice && x.PeriodMonths == o.PeriodMonths && x.MileagePerYear == o.MileagePerYear {
			return true
		}
	}
	return false
}
