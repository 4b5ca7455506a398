// Package leaseprice reads the price-list documents produced by the upstream
// extractor and flattens them into ExtractedVehicles.
package leaseprice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type Document struct {
	Info     DocumentInfo `json:"document_info"`
	Vehicles []Vehicle    `json:"vehicles"`
}

type DocumentInfo struct {
	Brand        string `json:"brand"`
	DocumentDate string `json:"document_date"`
	Currency     string `json:"currency"`
	Language     string `json:"language"`
	DocumentType string `json:"document_type"`
}

type Vehicle struct {
	Model             string    `json:"model"`
	Category          string    `json:"category"`
	LeasePeriodMonths Amount    `json:"lease_period_months"`
	PowertrainType    string    `json:"powertrain_type"`
	Variants          []Variant `json:"variants"`
}

type Variant struct {
	Name                string  `json:"variant_name"`
	EngineSpecification string  `json:"engine_specification"`
	Transmission        string  `json:"transmission"`
	Pricing             Pricing `json:"pricing"`
}

type Pricing struct {
	MonthlyPayment   Amount `json:"monthly_payment"`
	FirstPayment     Amount `json:"first_payment"`
	TotalCost        Amount `json:"total_cost"`
	AnnualKilometers Amount `json:"annual_kilometers"`
}

// Amount accepts JSON numbers, null and Danish-formatted strings
// ("2.699 kr.", "102.163", "57,7", "15.000 km").
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if b[0] != '"' {
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("amount %s: %w", b, err)
		}
		*a = Amount(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	f, err := ParseDanishNumber(s)
	if err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

func (a Amount) Float() float64 { return float64(a) }
func (a Amount) Int() int       { return int(float64(a) + 0.5) }

// ParseDanishNumber reads "2.699", "2.699,50", "57,7" and ignores currency/unit
// words around the number. An empty string is 0.
func ParseDanishNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))
	if s == "" {
		return 0, nil
	}
	start, end := -1, -1
	for i, r := range s {
		digit := r >= '0' && r <= '9'
		isNum := digit || (start != -1 && (r == '.' || r == ','))
		if start == -1 && r == '-' {
			isNum = true
		}
		if r == ' ' && start != -1 && end == i {
			// thousands groups separated by spaces ("102 163")
			continue
		}
		if isNum {
			if start == -1 {
				start = i
			}
			end = i + 1
			continue
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return 0, fmt.Errorf("no number in %q", s)
	}
	num := strings.TrimRight(strings.ReplaceAll(s[start:end], " ", ""), ".,")

	dot, comma := strings.LastIndex(num, "."), strings.LastIndex(num, ",")
	switch {
	case comma >= 0:
		// comma is the decimal mark; dots group thousands
		num = strings.ReplaceAll(num[:comma], ".", "") + "." + num[comma+1:]
	case dot >= 0 && isThousandsGrouped(num, '.'):
		num = strings.ReplaceAll(num, ".", "")
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return f, nil
}

// isThousandsGrouped reports whether every sep-separated group after the first has three digits.
func isThousandsGrouped(num string, sep byte) bool {
	parts := strings.Split(num, string(sep))
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func Parse(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode extractor document: %w", err)
	}
	if strings.TrimSpace(doc.Info.Brand) == "" {
		return nil, fmt.Errorf("extractor document has no document_info.brand")
	}
	return &doc, nil
}
