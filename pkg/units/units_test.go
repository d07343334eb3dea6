package units

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		name string
		in   *big.Int
		want string
	}{
		{"nil", nil, "0"},
		{"zero", big.NewInt(0), "0"},
		{"whole", Ether(950), "950"},
		{"half", new(big.Int).Div(Ether(1), big.NewInt(2)), "0.5"},
		{"one wei", big.NewInt(1), "0.000000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatUnits(tt.in); got != tt.want {
				t.Errorf("FormatUnits() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseUnits(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *big.Int
		wantErr bool
	}{
		{"whole", "50", Ether(50), false},
		{"padded", " 10 ", Ether(10), false},
		{"fraction", "0.5", new(big.Int).Div(Ether(1), big.NewInt(2)), false},
		{"smallest", "0.000000000000000001", big.NewInt(1), false},
		{"trailing zeros beyond scale", "1.0000000000000000000000", Ether(1), false},
		{"too precise", "0.0000000000000000001", nil, true},
		{"negative", "-1", nil, true},
		{"empty", "", nil, true},
		{"garbage", "ten", nil, true},
		{"exponent", "5e1", nil, true},
		{"upper exponent", "1E18", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUnits(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseUnits(%q) expected error, got %s", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseUnits(%q) failed: %v", tt.in, err)
			}
			if got.Cmp(tt.want) != 0 {
				t.Errorf("ParseUnits(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}
