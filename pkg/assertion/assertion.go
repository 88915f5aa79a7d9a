// Package assertion turns verifier results and foreign provider results into
// one canonical verification assertion, and issues the session cookie from it.
package assertion

import (
	"time"

	"github.com/joeydtaylor/agegate/pkg/agetier"
	"github.com/joeydtaylor/agegate/pkg/codes"
)

// Verification types.
const (
	TypeCredential    = "credential"
	TypeDocument      = "document"
	TypeAgeEstimation = "age_estimation"
	TypeDatabase      = "database"
	TypeCreditCard    = "credit_card"
)

// Evidence types.
const (
	EvidenceDigitalCredential = "digital_credential"
	EvidenceIdentityDocument  = "identity_document"
	EvidenceFacialImage       = "facial_image"
	EvidenceRecord            = "record"
	EvidencePaymentCard       = "payment_card"
)

var (
	verificationTypes = map[string]struct{}{
		TypeCredential: {}, TypeDocument: {}, TypeAgeEstimation: {},
		TypeDatabase: {}, TypeCreditCard: {},
	}
	evidenceTypes = map[string]struct{}{
		EvidenceDigitalCredential: {}, EvidenceIdentityDocument: {},
		EvidenceFacialImage: {}, EvidenceRecord: {}, EvidencePaymentCard: {},
	}
)

const maxFieldLen = 256

// Assertion is the canonical record of a successful verification.
type Assertion struct {
	Provider         string    `json:"provider"`
	AgeTier          string    `json:"ageTier"`
	VerifiedAt       time.Time `json:"verifiedAt"`
	Assurance        string    `json:"assurance,omitempty"`
	VerificationType string    `json:"verificationType,omitempty"`
	EvidenceType     string    `json:"evidenceType,omitempty"`
	TransactionID    string    `json:"transactionId,omitempty"`
	LevelOfAssurance string    `json:"levelOfAssurance,omitempty"`
}

// Validate enforces the invariants every Assertion carries.
func (a Assertion) Validate() *codes.Failure {
	if a.Provider == "" || a.VerifiedAt.IsZero() {
		return codes.Fail(codes.InvalidCredential)
	}
	if !agetier.Valid(a.AgeTier) {
		return codes.Fail(codes.InvalidAgeTier)
	}
	if a.VerificationType != "" {
		if _, ok := verificationTypes[a.VerificationType]; !ok {
			return codes.Fail(codes.InvalidCredential)
		}
	}
	if a.EvidenceType != "" {
		if _, ok := evidenceTypes[a.EvidenceType]; !ok {
			return codes.Fail(codes.InvalidCredential)
		}
	}
	for _, s := range []string{a.Provider, a.Assurance, a.TransactionID, a.LevelOfAssurance} {
		if len(s) > maxFieldLen {
			return codes.Fail(codes.InvalidCredential)
		}
	}
	return nil
}
