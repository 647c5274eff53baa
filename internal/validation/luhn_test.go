package validation

import "testing"

func TestIsValidLuhn(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid example 2",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidLuhn(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidLuhn(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestIsValidCouponCode(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{code: "123456789015", valid: true},
		{code: "123456789016", valid: false},
		{code: "79927398713", valid: false},
		{code: "12345678901a", valid: false},
		{code: "", valid: false},
	}

	for _, tt := range tests {
		if got := IsValidCouponCode(tt.code); got != tt.valid {
			t.Fatalf("IsValidCouponCode(%q) = %v, want %v", tt.code, got, tt.valid)
		}
	}
}

func TestGenerateCouponCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := GenerateCouponCode()
		if err != nil {
			t.Fatalf("GenerateCouponCode error: %v", err)
		}
		if !IsValidCouponCode(code) {
			t.Fatalf("generated code %q does not pass validation", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 90 {
		t.Fatalf("generated codes are not random enough: %d unique of 100", len(seen))
	}
}
