package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{name: "already normalized", raw: "01A123BC", want: "01A123BC"},
		{name: "lower case", raw: "01a123bc", want: "01A123BC"},
		{name: "spaces and dashes", raw: " 01 A-123 BC ", want: "01A123BC"},
		{name: "tab", raw: "01A\t123", want: "01A123"},
		{name: "empty", raw: "   ", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizePlate(tc.raw); got != tc.want {
				t.Fatalf("NormalizePlate(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
