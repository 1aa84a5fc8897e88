package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"2500", 250000, true},
		{"2500,50", 250050, true},
		{"2500.50", 250050, true},
		{"R$ 2.500,50", 250050, true},
		{"2.500,50", 250050, true},
		{"2,500.50", 250050, true},
		{"1.234.567,89", 123456789, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2,50 ", 250, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"R$", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "R$ 0,00"},
		{5, "R$ 0,05"},
		{100, "R$ 1,00"},
		{123456, "R$ 1.234,56"},
		{5000000, "R$ 50.000,00"},
		{123456789, "R$ 1.234.567,89"},
		{-250050, "-R$ 2.500,50"},
	}
	for _, tc := range cases {
		if got := FormatBRL(tc.cents); got != tc.want {
			t.Fatalf("FormatBRL(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
