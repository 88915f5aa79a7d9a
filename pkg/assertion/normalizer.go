package assertion

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joeydtaylor/agegate/pkg/agetier"
	"github.com/joeydtaylor/agegate/pkg/codes"
	"github.com/joeydtaylor/agegate/pkg/gate"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"github.com/joeydtaylor/agegate/pkg/verifier"
)

// Provider result keys.
const (
	KeyAgeTier          = "ageTier"
	KeySessionID        = "sessionId"
	KeyVerifiedAt       = "verifiedAt"
	KeyAssurance        = "assurance"
	KeyVerificationType = "verificationType"
	KeyEvidenceType     = "evidenceType"
	KeyTransactionID    = "transactionId"
	KeyLevelOfAssurance = "levelOfAssurance"
)

type Normalizer struct {
	cfg   *policy.Config
	gates *gate.Manager
	now   func() time.Time
}

type Option func(*Normalizer)

func WithClock(now func() time.Time) Option { return func(n *Normalizer) { n.now = now } }

func NewNormalizer(cfg *policy.Config, gates *gate.Manager, opts ...Option) *Normalizer {
	n := &Normalizer{cfg: cfg, gates: gates, now: time.Now}
	for _, o := range opts {
		o(n)
	}
	return n
}

// FromVerification binds a successful verifier result to the caller's
// session id and returns the assertion for it.
func (n *Normalizer) FromVerification(res verifier.Result, sessionID string) (Assertion, *codes.Failure) {
	if !res.OK() {
		if res.Failure != nil {
			return Assertion{}, res.Failure
		}
		return Assertion{}, codes.Fail(codes.VerifyFailed)
	}
	if f := bindSession(res.Claims.SessionID(), sessionID); f != nil {
		return Assertion{}, f
	}
	a := Assertion{
		Provider:         n.cfg.ProviderName(),
		AgeTier:          res.Claims.AgeTier(),
		VerifiedAt:       n.now().UTC(),
		VerificationType: TypeCredential,
		EvidenceType:     EvidenceDigitalCredential,
		TransactionID:    res.Claims.ID,
	}
	return a, a.Validate()
}

// FromProvider normalizes a foreign provider's result map. The provider must
// be allow-listed and its tier must meet the configured minimum.
func (n *Normalizer) FromProvider(provider string, raw map[string]any, sessionID string) (Assertion, *codes.Failure) {
	if !n.cfg.AllowsProvider(provider) || raw == nil {
		return Assertion{}, codes.Fail(codes.InvalidInput)
	}
	claimed, ok := stringField(raw, KeySessionID)
	if !ok {
		return Assertion{}, codes.Fail(codes.InvalidInput)
	}
	if f := bindSession(claimed, sessionID); f != nil {
		return Assertion{}, f
	}

	a := Assertion{Provider: strings.ToLower(strings.TrimSpace(provider))}
	var bad bool
	for key, dst := range map[string]*string{
		KeyAgeTier:          &a.AgeTier,
		KeyAssurance:        &a.Assurance,
		KeyVerificationType: &a.VerificationType,
		KeyEvidenceType:     &a.EvidenceType,
		KeyTransactionID:    &a.TransactionID,
		KeyLevelOfAssurance: &a.LevelOfAssurance,
	} {
		s, ok := stringField(raw, key)
		if !ok {
			bad = true
		}
		*dst = s
	}
	if bad {
		return Assertion{}, codes.Fail(codes.InvalidInput)
	}

	at, err := verifiedAt(raw[KeyVerifiedAt], n.now)
	if err != nil {
		return Assertion{}, codes.Fail(codes.InvalidInput)
	}
	a.VerifiedAt = at

	if f := a.Validate(); f != nil {
		return Assertion{}, f
	}
	if !agetier.Satisfies(a.AgeTier, n.cfg.MinAge()) {
		return Assertion{}, codes.Fail(codes.InsufficientAgeTier)
	}
	return a, nil
}

// Issue signs the session cookie for a.
func (n *Normalizer) Issue(a Assertion) (*http.Cookie, gate.Payload, error) {
	if f := a.Validate(); f != nil {
		return nil, gate.Payload{}, f
	}
	v, p, err := n.gates.Issue(a.AgeTier)
	if err != nil {
		return nil, gate.Payload{}, err
	}
	return n.gates.Cookie(v), p, nil
}

// bindSession requires both ids to be UUIDs and equal in constant time.
func bindSession(claimed, supplied string) *codes.Failure {
	if !isUUID(claimed) || !isUUID(supplied) {
		return codes.Fail(codes.SessionBindingRequired)
	}
	a := strings.ToLower(claimed)
	b := strings.ToLower(supplied)
	if subtle.ConstantTimeCompare([]byte(a), []byte(b)) != 1 {
		return codes.Fail(codes.SessionBindingMismatch)
	}
	return nil
}

// isUUID accepts only the canonical 36-character hyphenated form.
func isUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// stringField returns raw[key] as a trimmed string. Absent and null are "";
// any other type is not ok.
func stringField(raw map[string]any, key string) (string, bool) {
	v, present := raw[key]
	if !present || v == nil {
		return "", true
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// verifiedAt accepts RFC 3339 strings or unix seconds; absent means now.
// Times in the future beyond a minute of skew are rejected.
func verifiedAt(v any, now func() time.Time) (time.Time, error) {
	ref := now().UTC()
	var t time.Time
	switch x := v.(type) {
	case nil:
		return ref, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, x)
		if err != nil {
			return time.Time{}, err
		}
		t = parsed.UTC()
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return time.Time{}, err
		}
		return verifiedAt(f, now)
	case float64:
		if x <= 0 || x > math.MaxInt32*4 || x != math.Trunc(x) {
			return time.Time{}, fmt.Errorf("verifiedAt %v out of range", x)
		}
		t = time.Unix(int64(x), 0).UTC()
	default:
		return time.Time{}, fmt.Errorf("verifiedAt has type %T", v)
	}
	if t.After(ref.Add(time.Minute)) {
		return time.Time{}, fmt.Errorf("verifiedAt %s is in the future", t)
	}
	return t, nil
}
