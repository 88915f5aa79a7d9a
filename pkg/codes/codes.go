// Package codes holds the stable error-code taxonomy shared by verification,
// assertion normalization and the HTTP layer.
package codes

import "net/http"

// Code is a stable, public error identifier.
type Code string

const (
	InvalidInput           Code = "invalid_input"
	InvalidHeader          Code = "invalid_header"
	InvalidIssuer          Code = "invalid_issuer"
	InvalidCredential      Code = "invalid_credential"
	InvalidAgeTier         Code = "invalid_age_tier"
	InsufficientAgeTier    Code = "insufficient_age_tier"
	SessionBindingRequired Code = "session_binding_required"
	SessionBindingMismatch Code = "session_binding_mismatch"
	TokenExpired           Code = "token_expired"
	TokenNotYetValid       Code = "token_not_yet_valid"
	InvalidSignature       Code = "invalid_signature"
	UnknownKeyID           Code = "unknown_key_id"
	VerifyFailed           Code = "verify_failed"
)

var messages = map[Code]string{
	InvalidInput:           "Invalid input",
	InvalidHeader:          "Invalid token header",
	InvalidIssuer:          "Invalid issuer",
	InvalidCredential:      "Invalid credential",
	InvalidAgeTier:         "Invalid age tier",
	InsufficientAgeTier:    "Age tier does not meet the required minimum",
	SessionBindingRequired: "Session binding required",
	SessionBindingMismatch: "Session binding mismatch",
	TokenExpired:           "Token expired",
	TokenNotYetValid:       "Token not yet valid",
	InvalidSignature:       "Invalid signature",
	UnknownKeyID:           "Unknown key id",
	VerifyFailed:           "Verification failed",
}

// All returns every known code in declaration order.
func All() []Code {
	return []Code{
		InvalidInput, InvalidHeader, InvalidIssuer, InvalidCredential,
		InvalidAgeTier, InsufficientAgeTier, SessionBindingRequired,
		SessionBindingMismatch, TokenExpired, TokenNotYetValid,
		InvalidSignature, UnknownKeyID, VerifyFailed,
	}
}

// Message returns the fixed human-readable message for c. Unknown codes map
// to the verify_failed message.
func Message(c Code) string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[VerifyFailed]
}

// Valid reports whether c belongs to the taxonomy.
func Valid(c Code) bool {
	_, ok := messages[c]
	return ok
}

// HTTPStatus maps a code onto the status an HTTP handler should answer with.
func HTTPStatus(c Code) int {
	switch c {
	case InvalidInput, InvalidHeader, InvalidCredential, InvalidAgeTier,
		SessionBindingRequired, SessionBindingMismatch:
		return http.StatusBadRequest
	case InsufficientAgeTier:
		return http.StatusForbidden
	case InvalidSignature, TokenExpired, TokenNotYetValid, InvalidIssuer, UnknownKeyID:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Failure is a structured, caller-safe failure. It never carries internal
// error detail.
type Failure struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Fail builds the Failure for c with its fixed message.
func Fail(c Code) *Failure {
	if !Valid(c) {
		c = VerifyFailed
	}
	return &Failure{Code: c, Message: Message(c)}
}

func (f *Failure) Error() string { return string(f.Code) + ": " + f.Message }
