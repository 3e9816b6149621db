package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"dot separator", "12.34", 1234, false},
		{"comma separator", "12,34", 1234, false},
		{"integer only", "80", 8000, false},
		{"single fraction digit", "5.5", 550, false},
		{"rounds down third decimal", "12.345", 1234, false},
		{"rounds up third decimal", "12.346", 1235, false},
		{"negative", "-80.00", -8000, false},
		{"explicit positive", "+12.50", 1250, false},
		{"leading dot", ".50", 50, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"bare sign", "-", 0, true},
		{"two dots", "1.2.3", 0, true},
		{"letters", "12a.50", 0, true},
		{"whitespace only", "   ", 0, true},
		{"overflow", "92233720368547758079", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimalToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{8000, "80.00"},
		{-8000, "-80.00"},
		{5, "0.05"},
		{0, "0.00"},
		{123456, "1234.56"},
	}
	for _, tt := range tests {
		if got := (Money{Cents: tt.cents}).String(); got != tt.want {
			t.Errorf("Money{%d}.String() = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: 1500}
	b := Money{Cents: 700}

	if got := a.Add(b); got.Cents != 2200 {
		t.Errorf("Add = %d, want 2200", got.Cents)
	}
	if got := a.Sub(b); got.Cents != 800 {
		t.Errorf("Sub = %d, want 800", got.Cents)
	}
	if got := a.Neg(); got.Cents != -1500 {
		t.Errorf("Neg = %d, want -1500", got.Cents)
	}
	if !(Money{}).IsZero() {
		t.Error("zero money should report IsZero")
	}
}
