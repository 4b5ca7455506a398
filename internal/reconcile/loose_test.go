package reconcile

import (
	"encoding/json"
	"testing"
)

func TestLooseEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b any
		want bool
	}{
		{"int vs float", 2799, 2799.0, true},
		{"numeric string vs int", "2799", 2799, true},
		{"padded numeric string", " 2799.00 ", 2799.0, true},
		{"json number", json.Number("72"), 72, true},
		{"different numbers", 2799, 2899, false},
		{"numeric string differs", "2799", 2798.5, false},
		{"case-insensitive strings", "Automatic", " automatic", true},
		{"different strings", "Active", "Active+", false},
		{"nil vs blank", nil, "  ", true},
		{"nil vs zero", nil, 0, false},
		{"blank vs value", "", "Manual", false},
		{"non-numeric string vs number", "abc", 1, false},
		{"bools", true, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LooseEqual(tc.a, tc.b); got != tc.want {
				t.Fatalf("LooseEqual(%#v, %#v): want=%v got=%v", tc.a, tc.b, tc.want, got)
			}
			if got := LooseEqual(tc.b, tc.a); got != tc.want {
				t.Fatalf("LooseEqual symmetric (%#v, %#v): want=%v got=%v", tc.b, tc.a, tc.want, got)
			}
		})
	}
}
