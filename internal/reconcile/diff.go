package reconcile

import (
	"sort"

	types "github.com/leasingborsen/listing-reconciler/internal/domain"
)

// Field names used in FieldDiff.
const (
	FieldVariant      = "variant"
	FieldHorsepower   = "horsepower"
	FieldTransmission = "transmission"
	FieldFuelType     = "fuel_type"
	FieldBodyType     = "body_type"
	FieldMonthlyPrice = "monthly_price"
	FieldOffers       = "offers"
)

// Diff lists every field where the extracted vehicle differs from the listing.
// Descriptive fields the extraction did not report (zero horsepower, blank
// transmission/fuel/body) are left to the listing and never diffed; applying a
// change leaves them untouched, so Diff(snapshot, listing-after-apply) is empty.
func Diff(v types.ExtractedVehicle, l *types.Listing) types.FieldDiff {
	d := types.FieldDiff{}
	if l == nil {
		return d
	}
	compare := func(field string, current, extracted any) {
		if !LooseEqual(current, extracted) {
			d[field] = types.FieldChange{Old: current, New: extracted}
		}
	}

	compare(FieldVariant, l.Variant, v.Variant)
	if v.Horsepower > 0 {
		compare(FieldHorsepower, l.Horsepower, v.Horsepower)
	}
	if v.Transmission != "" {
		compare(FieldTransmission, l.Transmission, v.Transmission)
	}
	if v.FuelType != "" {
		compare(FieldFuelType, l.FuelType, v.FuelType)
	}
	if v.BodyType != "" {
		compare(FieldBodyType, l.BodyType, v.BodyType)
	}
	compare(FieldMonthlyPrice, l.MonthlyPrice, v.EffectiveMonthlyPrice())

	oldOffers := offersFromListing(l.Offers)
	newOffers := canonicalOffers(v.Offers)
	if !offersEqual(oldOffers, newOffers) {
		d[FieldOffers] = types.FieldChange{Old: oldOffers, New: newOffers}
	}
	return d
}

func offersFromListing(in []types.Offer) []types.ExtractedOffer {
	out := make([]types.ExtractedOffer, 0, len(in))
	for _, o := range in {
		out = append(out, types.ExtractedOffer{
			MonthlyPrice:   o.MonthlyPrice,
			PeriodMonths:   o.PeriodMonths,
			MileagePerYear: o.MileagePerYear,
			FirstPayment:   o.FirstPayment,
			TotalPrice:     o.TotalPrice,
		})
	}
	return canonicalOffers(out)
}

// canonicalOffers sorts a copy by period, mileage, then prices, so offer sets compare as multisets.
func canonicalOffers(in []types.ExtractedOffer) []types.ExtractedOffer {
	out := append([]types.ExtractedOffer(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PeriodMonths != b.PeriodMonths {
			return a.PeriodMonths < b.PeriodMonths
		}
		if a.MileagePerYear != b.MileagePerYear {
			return a.MileagePerYear < b.MileagePerYear
		}
		if a.MonthlyPrice != b.MonthlyPrice {
			return a.MonthlyPrice < b.MonthlyPrice
		}
		if a.FirstPayment != b.FirstPayment {
			return a.FirstPayment < b.FirstPayment
		}
		return a.TotalPrice < b.TotalPrice
	})
	return out
}

func offersEqual(a, b []types.ExtractedOffer) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !LooseEqual(a[i].PeriodMonths, b[i].PeriodMonths) ||
			!LooseEqual(a[i].MileagePerYear, b[i].MileagePerYear) ||
			!LooseEqual(a[i].MonthlyPrice, b[i].MonthlyPrice) ||
			!LooseEqual(a[i].FirstPayment, b[i].FirstPayment) ||
			!LooseEqual(a[i].TotalPrice, b[i].TotalPrice) {
			return false
		}
	}
	return true
}
