package codes

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryCodeHasMessage(t *testing.T) {
	for _, c := range All() {
		require.True(t, Valid(c), c)
		assert.NotEmpty(t, Message(c), c)
	}
	assert.Len(t, All(), 13)
}

func TestFailUnknownCodeCollapses(t *testing.T) {
	f := Fail(Code("boom"))
	assert.Equal(t, VerifyFailed, f.Code)
	assert.Equal(t, "Verification failed", f.Message)
}

func TestInvalidIssuerMessage(t *testing.T) {
	f := Fail(InvalidIssuer)
	assert.Equal(t, "Invalid issuer", f.Message)
	assert.Equal(t, "invalid_issuer: Invalid issuer", f.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{InvalidInput, http.StatusBadRequest},
		{SessionBindingMismatch, http.StatusBadRequest},
		{InsufficientAgeTier, http.StatusForbidden},
		{TokenExpired, http.StatusUnauthorized},
		{UnknownKeyID, http.StatusUnauthorized},
		{VerifyFailed, http.StatusInternalServerError},
		{Code("nope"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.code))
		})
	}
}
