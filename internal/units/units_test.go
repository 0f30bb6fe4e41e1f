package units

import (
	"math/big"
	"testing"
)

func TestParseUnits(t *testing.T) {
	tests := []struct {
		amount   string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{"1", 6, "1000000", false},
		{"12.5", 18, "12500000000000000000", false},
		{"0.000001", 6, "1", false},
		{"0.0000001", 6, "", true},
		{"-1", 6, "", true},
		{"abc", 6, "", true},
	}
	for _, tt := range tests {
		got, err := ParseUnits(tt.amount, tt.decimals)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseUnits(%q): Expected error, got %s", tt.amount, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseUnits(%q): unexpected error %v", tt.amount, err)
		}
		if got.String() != tt.want {
			t.Errorf("ParseUnits(%q): Expected %s, got %s", tt.amount, tt.want, got)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	if got := FormatUnits(big.NewInt(50_000_000), 6); got != "50" {
		t.Errorf("Expected 50, got %s", got)
	}
	if got := FormatUnits(big.NewInt(1_500_000), 6); got != "1.5" {
		t.Errorf("Expected 1.5, got %s", got)
	}
	if got := FormatUnits(nil, 6); got != "0" {
		t.Errorf("Expected 0 for nil, got %s", got)
	}
}
