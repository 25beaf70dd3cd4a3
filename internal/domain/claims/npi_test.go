package claims

import "testing"

func TestValidNPI(t *testing.T) {
	tests := []struct {
		npi   string
		valid bool
	}{
		{"1234567893", true},  // correct check digit
		{"1234567890", false}, // wrong check digit
		{"1234567893 ", false},
		{"234567893", false},  // 9 digits
		{"12345678934", false},
		{"3234567891", false}, // first digit must be 1 or 2
		{"123456789X", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidNPI(tt.npi); got != tt.valid {
			t.Errorf("ValidNPI(%q) = %v, want %v", tt.npi, got, tt.valid)
		}
	}
}

func TestValidNPI_EntityTypeTwo(t *testing.T) {
	// 2234567891: prefix 80840, Luhn over 80840223456789 -> check digit 1.
	if !ValidNPI("2234567891") {
		t.Error("expected organization NPI starting with 2 to validate")
	}
}

func TestValidTaxID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"123456789", true},
		{"000000000", true},
		{"12345678", false},
		{"1234567890", false},
		{"12-345678", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ValidTaxID(tt.id); got != tt.valid {
			t.Errorf("ValidTaxID(%q) = %v, want %v", tt.id, got, tt.valid)
		}
	}
}
