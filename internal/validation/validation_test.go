package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"notblank,max=10"`
	Code  string `json:"code" validate:"omitempty,coupon_code"`
	Note  string `json:"note" validate:"maxbytes=6"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		req     testRequest
		wantErr string
	}{
		{
			name: "valid",
			req:  testRequest{Email: "a@example.com", Name: "Acme", Code: "123456789015"},
		},
		{
			name:    "blank name",
			req:     testRequest{Email: "a@example.com", Name: "   "},
			wantErr: "name: failed notblank",
		},
		{
			name:    "bad email",
			req:     testRequest{Email: "nope", Name: "Acme"},
			wantErr: "email: failed email",
		},
		{
			name:    "too long name",
			req:     testRequest{Email: "a@example.com", Name: "abcdefghijk"},
			wantErr: "name: failed max=10",
		},
		{
			name: "multibyte note within limit",
			req:  testRequest{Email: "a@example.com", Name: "Acme", Note: "ёжи"},
		},
		{
			name:    "multibyte note over limit",
			req:     testRequest{Email: "a@example.com", Name: "Acme", Note: "ёжик"},
			wantErr: "note: failed maxbytes=6",
		},
		{
			name:    "bad coupon code",
			req:     testRequest{Email: "a@example.com", Name: "Acme", Code: "123456789016"},
			wantErr: "code: failed coupon_code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.req)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "hr@acme.io", NormalizeEmail("  HR@Acme.IO "))
}
