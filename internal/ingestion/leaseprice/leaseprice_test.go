package leaseprice

import (
	"strings"
	"testing"
)

const toyotaDoc = `{
  "document_info": {"brand": "Toyota", "currency": "DKK"},
  "vehicles": [
    {
      "model": "Aygo X",
      "category": "small",
      "lease_period_months": 36,
      "powertrain_type": "gasoline",
      "variants": [
        {
          "variant_name": "Active",
          "engine_specification": "1.0 benzin 72 hk",
          "pricing": {"monthly_payment": "2.699 kr.", "first_payment": 4999, "total_cost": "102.163", "annual_kilometers": "15.000 km"}
        },
        {
          "variant_name": "Active",
          "engine_specification": "1.0 benzin 72 hk",
          "pricing": {"monthly_payment": 2899, "first_payment": 4999, "total_cost": 109363, "annual_kilometers": 20000}
        },
        {
          "variant_name": "Active",
          "engine_specification": "1.0 benzin 72 hk",
          "pricing": {"monthly_payment": 2899, "first_payment": 4999, "total_cost": 109363, "annual_kilometers": 20000}
        },
        {
          "variant_name": "Pulse",
          "engine_specification": "1.0 benzin 72 hk automatgear",
          "pricing": {"monthly_payment": 3199, "annual_kilometers": 15000}
        }
      ]
    },
    {
      "model": "bZ4X",
      "lease_period_months": "36 mdr.",
      "powertrain_type": "electric",
      "variants": [
        {
          "variant_name": "Executive",
          "engine_specification": "73,1 kWh, 218 hk",
          "transmission": "automatic",
          "pricing": {"monthly_payment": "5.499", "annual_kilometers": null}
        }
      ]
    }
  ]
}`

func TestParseAndFlatten(t *testing.T) {
	doc, err := Parse(strings.NewReader(toyotaDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	vehicles := Flatten(doc)
	if len(vehicles) != 3 {
		t.Fatalf("vehicles: want=3 got=%d (%+v)", len(vehicles), vehicles)
	}

	active := vehicles[0]
	if active.Make != "Toyota" || active.Model != "Aygo X" || active.Variant != "Active" {
		t.Fatalf("active identity: got=%+v", active)
	}
	if active.Horsepower != 72 || active.Transmission != "Manual" || active.FuelType != "Benzin" {
		t.Fatalf("active specs: got hp=%d trans=%q fuel=%q", active.Horsepower, active.Transmission, active.FuelType)
	}
	if len(active.Offers) != 2 {
		t.Fatalf("active offers: want=2 got=%d", len(active.Offers))
	}
	first := active.Offers[0]
	if first.MonthlyPrice != 2699 || first.PeriodMonths != 36 || first.MileagePerYear != 15000 || first.TotalPrice != 102163 || first.FirstPayment != 4999 {
		t.Fatalf("first offer: got=%+v", first)
	}
	if active.MonthlyPrice != 2699 {
		t.Fatalf("active monthly: want=2699 got=%v", active.MonthlyPrice)
	}
	if err := active.Validate(); err != nil {
		t.Fatalf("active Validate: %v", err)
	}

	pulse := vehicles[1]
	if pulse.Transmission != "Automatic" || pulse.Horsepower != 72 {
		t.Fatalf("pulse: got trans=%q hp=%d", pulse.Transmission, pulse.Horsepower)
	}

	ev := vehicles[2]
	if ev.FuelType != "El" || ev.Horsepower != 218 || ev.Transmission != "Automatic" {
		t.Fatalf("bZ4X specs: got=%+v", ev)
	}
	if len(ev.Offers) != 1 || ev.Offers[0].PeriodMonths != 36 || ev.Offers[0].MonthlyPrice != 5499 {
		t.Fatalf("bZ4X offers: got=%+v", ev.Offers)
	}
}

func TestParse_RequiresBrand(t *testing.T) {
	if _, err := Parse(strings.NewReader(`{"vehicles": []}`)); err == nil {
		t.Fatalf("Parse without brand: want error")
	}
	if _, err := Parse(strings.NewReader(`{`)); err == nil {
		t.Fatalf("Parse truncated: want error")
	}
}

func TestFlatten_VariantWithoutPriceHasNoOffers(t *testing.T) {
	doc := &Document{
		Info: DocumentInfo{Brand: "Toyota"},
		Vehicles: []Vehicle{{
			Model:    "Yaris",
			Variants: []Variant{{Name: "Style", EngineSpecification: "1.5 hybrid 116 hk"}},
		}},
	}
	got := Flatten(doc)
	if len(got) != 1 {
		t.Fatalf("vehicles: want=1 got=%d", len(got))
	}
	if len(got[0].Offers) != 0 {
		t.Fatalf("offers: want=0 got=%d", len(got[0].Offers))
	}
	if got[0].FuelType != "Hybrid" {
		t.Fatalf("fuel: want=Hybrid got=%q", got[0].FuelType)
	}
	if got[0].Validate() == nil {
		t.Fatalf("Validate: want error for vehicle without offers")
	}
}

func TestParseDanishNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"2.699 kr.", 2699},
		{"102.163", 102163},
		{"102.163,50", 102163.5},
		{"57,7", 57.7},
		{"1.0", 1.0},
		{"15.000 km", 15000},
		{"kr. 4.999", 4999},
		{"102 163 kr", 102163},
		{"2 699", 2699},
	}
	for _, tc := range cases {
		got, err := ParseDanishNumber(tc.in)
		if err != nil {
			t.Fatalf("ParseDanishNumber(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDanishNumber(%q): want=%v got=%v", tc.in, tc.want, got)
		}
	}
	if _, err := ParseDanishNumber("ingen pris"); err == nil {
		t.Fatalf("ParseDanishNumber without digits: want error")
	}
}

func TestHorsepowerAndTransmission(t *testing.T) {
	if got := Horsepower("2.5 plug-in hybrid 306 HK AWD"); got != 306 {
		t.Fatalf("Horsepower: want=306 got=%d", got)
	}
	if got := Horsepower("1.0 benzin"); got != 0 {
		t.Fatalf("Horsepower absent: want=0 got=%d", got)
	}
	cases := []struct{ field, spec, want string }{
		{"manual", "", "Manual"},
		{"Automatisk", "", "Automatic"},
		{"", "1.0 benzin 72 hk automatgear", "Automatic"},
		{"", "1.5 diesel 130 hk", "Manual"},
		{"", "73,1 kWh", ""},
	}
	for _, tc := range cases {
		if got := Transmission(tc.field, tc.spec); got != tc.want {
			t.Fatalf("Transmission(%q,%q): want=%q got=%q", tc.field, tc.spec, tc.want, got)
		}
	}
}
