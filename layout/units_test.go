package layout

import (
	"math"
	"testing"
)

func TestParseMM(t *testing.T) {
	mm, err := ParseMM("2cm")
	if err != nil || mm != 20 {
		t.Fatalf("ParseMM(2cm) = %g, %v", mm, err)
	}
	if mm, _ := ParseMM("72pt"); math.Abs(mm-25.4) > 1e-3 {
		t.Fatalf("ParseMM(72pt) = %g, want ≈25.4", mm)
	}
	if _, err := ParseMM("wide"); err == nil {
		t.Fatalf("ParseMM(wide) expected error")
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		unit Unit
	}{
		{"35mm", 35, UnitMM},
		{"3.5cm", 35, UnitCM},
		{"1in", 25.4, UnitIN},
		{"12pt", 12 * PtToMm, UnitPT},
		{"10", 10, UnitNone},
		{" 5 MM ", 5, UnitMM},
	}
	for _, tc := range cases {
		l, err := ParseLength(tc.in)
		if err != nil {
			t.Fatalf("ParseLength(%q) error: %v", tc.in, err)
		}
		if l.Unit != tc.unit {
			t.Fatalf("ParseLength(%q) unit = %v, want %v", tc.in, l.Unit, tc.unit)
		}
		if diff := math.Abs(l.ToMM() - tc.want); diff > 1e-9 {
			t.Fatalf("ParseLength(%q) = %gmm, want %gmm", tc.in, l.ToMM(), tc.want)
		}
	}
}

func TestParseLengthRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "mm", "abc", "12px", "inf", "+Inf", "-inf", "nan", "NaNmm", "infinitymm", "1e400"} {
		if _, err := ParseLength(in); err == nil {
			t.Fatalf("ParseLength(%q) expected error", in)
		}
	}
}
