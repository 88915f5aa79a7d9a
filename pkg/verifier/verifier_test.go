package verifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joeydtaylor/agegate/internal/testutil"
	"github.com/joeydtaylor/agegate/pkg/codes"
	"github.com/joeydtaylor/agegate/pkg/keycache"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	prodIssuer = "https://verify.example"
	prodJWKS   = "https://verify.example/jwks.json"
	demoIssuer = "https://demo.verify.example"
	demoJWKS   = "https://demo.verify.example/jwks.json"
	sessionID  = "3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	prodKey testutil.Key
	demoKey testutil.Key
	keys    keycache.Static
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		prodKey: testutil.NewKey(t, "prod-1"),
		demoKey: testutil.NewKey(t, "demo-1"),
	}
	prod, err := keycache.ParseKeySet(testutil.JWKS(t, f.prodKey))
	require.NoError(t, err)
	demo, err := keycache.ParseKeySet(testutil.JWKS(t, f.demoKey))
	require.NoError(t, err)
	f.keys = keycache.Static{prodJWKS: prod, demoJWKS: demo}
	return f
}

func newConfig(t *testing.T, mode string, minAge int) *policy.Config {
	t.Helper()
	f := policy.Defaults()
	f.Mode = mode
	f.MinAge = minAge
	f.Secret = strings.Repeat("s", 32)
	f.Issuer.Production = policy.IssuerFile{Issuer: prodIssuer, JWKSURL: prodJWKS}
	f.Issuer.Demo = policy.IssuerFile{Issuer: demoIssuer, JWKSURL: demoJWKS}
	c, err := policy.New(f)
	require.NoError(t, err)
	return c
}

func newVerifier(t *testing.T, mode string, keys keycache.Resolver, opts ...Option) *Verifier {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(newConfig(t, mode, 18), keys, opts...)
}

func validClaims(iss, tier string) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    iss,
			Subject:   "anon",
			NotBefore: jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(10 * time.Minute)),
		},
		VC: &Credential{
			Type: []string{TypeVerifiableCredential, TypeAgeTierCredential},
			CredentialSubject: &CredentialSubject{
				AgeTier:   tier,
				SessionID: sessionID,
			},
		},
	}
}

// validMapClaims is validClaims as a raw claim map, for shapes Claims cannot express.
func validMapClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss": prodIssuer,
		"sub": "anon",
		"jti": "tx-1",
		"nbf": fixedNow.Add(-time.Minute).Unix(),
		"exp": fixedNow.Add(10 * time.Minute).Unix(),
		"vc": map[string]any{
			"type": []any{TypeVerifiableCredential, TypeAgeTierCredential},
			"credentialSubject": map[string]any{
				"ageTier":   "21+",
				"sessionId": sessionID,
			},
		},
	}
}

func TestVerifySuccess(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", fx.keys)

	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(prodIssuer, "21+")))
	require.True(t, res.OK(), "failure: %+v", res.Failure)
	assert.Equal(t, 21, res.Tier)
	assert.Equal(t, "21+", res.Claims.AgeTier())
	assert.Equal(t, sessionID, res.Claims.SessionID())
	assert.Equal(t, prodIssuer, res.Claims.Issuer)
	assert.Equal(t, codes.Code(""), res.Code())
}

func TestVerifySuccessFromClaimMap(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", fx.keys)

	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validMapClaims()))
	require.True(t, res.OK(), "failure: %+v", res.Failure)
	assert.Equal(t, 21, res.Tier)
	assert.Equal(t, sessionID, res.Claims.SessionID())
	assert.Equal(t, "tx-1", res.Claims.ID)
	assert.Equal(t, "anon", res.Claims.Subject)
	require.NotNil(t, res.Claims.ExpiresAt)
	assert.Equal(t, fixedNow.Add(10*time.Minute).Unix(), res.Claims.ExpiresAt.Unix())
}

func TestVerifyFailures(t *testing.T) {
	fx := newFixture(t)
	stranger := testutil.NewKey(t, "prod-1")

	signed := func(mutate func(*Claims)) string {
		c := validClaims(prodIssuer, "21+")
		mutate(c)
		return fx.prodKey.Sign(t, c)
	}
	signedMap := func(mutate func(m, vc, subject map[string]any)) string {
		m := validMapClaims()
		vc := m["vc"].(map[string]any)
		mutate(m, vc, vc["credentialSubject"].(map[string]any))
		return fx.prodKey.Sign(t, m)
	}
	withHeader := func(hdr string) string {
		tok := signed(func(*Claims) {})
		parts := strings.SplitN(tok, ".", 3)
		return hdr + "." + parts[1] + "." + parts[2]
	}

	tests := []struct {
		name  string
		token string
		want  codes.Code
	}{
		{name: "empty", token: "", want: codes.InvalidInput},
		{name: "two segments", token: "a.b", want: codes.InvalidInput},
		{name: "four segments", token: "a.b.c.d", want: codes.InvalidInput},
		{name: "oversized", token: strings.Repeat("a", maxTokenBytes) + ".b.c", want: codes.InvalidInput},
		{name: "header not base64", token: withHeader("!!!"), want: codes.InvalidHeader},
		{name: "header not json", token: withHeader("bm90LWpzb24"), want: codes.InvalidHeader},
		{name: "header wrong alg", token: withHeader(b64(`{"alg":"HS256","kid":"prod-1"}`)), want: codes.InvalidHeader},
		{name: "header alg none", token: withHeader(b64(`{"alg":"none","kid":"prod-1"}`)), want: codes.InvalidHeader},
		{name: "header missing kid", token: withHeader(b64(`{"alg":"ES256"}`)), want: codes.InvalidHeader},
		{name: "unknown kid", token: withHeader(b64(`{"alg":"ES256","kid":"nope"}`)), want: codes.UnknownKeyID},
		{name: "demo key unknown in production", token: fx.demoKey.Sign(t, validClaims(prodIssuer, "21+")), want: codes.UnknownKeyID},
		{name: "wrong key same kid", token: stranger.Sign(t, validClaims(prodIssuer, "21+")), want: codes.InvalidSignature},
		{name: "tampered payload", token: tamperPayload(t, signed(func(*Claims) {})), want: codes.InvalidSignature},
		{name: "stripped signature", token: strings.TrimRightFunc(signed(func(*Claims) {}), func(r rune) bool { return r != '.' }), want: codes.InvalidSignature},
		{name: "expired", token: signed(func(c *Claims) {
			c.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-2 * time.Minute))
		}), want: codes.TokenExpired},
		{name: "missing exp", token: signed(func(c *Claims) { c.ExpiresAt = nil }), want: codes.TokenExpired},
		{name: "not yet valid", token: signed(func(c *Claims) {
			c.NotBefore = jwt.NewNumericDate(fixedNow.Add(5 * time.Minute))
		}), want: codes.TokenNotYetValid},
		{name: "demo issuer in production", token: signed(func(c *Claims) { c.Issuer = demoIssuer }), want: codes.InvalidIssuer},
		{name: "issuer prefix", token: signed(func(c *Claims) { c.Issuer = prodIssuer + "/" }), want: codes.InvalidIssuer},
		{name: "empty issuer", token: signed(func(c *Claims) { c.Issuer = "" }), want: codes.InvalidIssuer},
		{name: "no credential", token: signed(func(c *Claims) { c.VC = nil }), want: codes.InvalidCredential},
		{name: "missing age marker", token: signed(func(c *Claims) {
			c.VC.Type = []string{TypeVerifiableCredential}
		}), want: codes.InvalidCredential},
		{name: "missing vc marker", token: signed(func(c *Claims) {
			c.VC.Type = []string{TypeAgeTierCredential}
		}), want: codes.InvalidCredential},
		{name: "no subject", token: signed(func(c *Claims) { c.VC.CredentialSubject = nil }), want: codes.InvalidCredential},
		{name: "malformed tier", token: signed(func(c *Claims) { c.VC.CredentialSubject.AgeTier = "eighteen" }), want: codes.InvalidAgeTier},
		{name: "zero tier", token: signed(func(c *Claims) { c.VC.CredentialSubject.AgeTier = "0+" }), want: codes.InvalidAgeTier},
		{name: "missing tier", token: signed(func(c *Claims) { c.VC.CredentialSubject.AgeTier = "" }), want: codes.InvalidAgeTier},
		{name: "insufficient tier", token: signed(func(c *Claims) { c.VC.CredentialSubject.AgeTier = "16+" }), want: codes.InsufficientAgeTier},
		{name: "numeric issuer", token: signedMap(func(m, _, _ map[string]any) { m["iss"] = 42 }), want: codes.InvalidIssuer},
		{name: "vc is a string", token: signedMap(func(m, _, _ map[string]any) { m["vc"] = "VerifiableCredential" }), want: codes.InvalidCredential},
		{name: "vc type is a string", token: signedMap(func(_, vc, _ map[string]any) { vc["type"] = TypeAgeTierCredential }), want: codes.InvalidCredential},
		{name: "subject is a string", token: signedMap(func(_, vc, _ map[string]any) { vc["credentialSubject"] = "21+" }), want: codes.InvalidCredential},
		{name: "numeric tier", token: signedMap(func(_, _, sub map[string]any) { sub["ageTier"] = 21 }), want: codes.InvalidAgeTier},
		{name: "exp is a string", token: signedMap(func(m, _, _ map[string]any) { m["exp"] = "tomorrow" }), want: codes.InvalidInput},
	}
	v := newVerifier(t, "production", fx.keys)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Verify(context.Background(), tt.token)
			require.False(t, res.OK())
			assert.Equal(t, tt.want, res.Code())
			assert.Equal(t, codes.Message(tt.want), res.Failure.Message)
			assert.Nil(t, res.Claims)
		})
	}
}

func TestVerifyInvalidIssuerMessage(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", fx.keys)

	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(demoIssuer, "21+")))
	require.False(t, res.OK())
	assert.Equal(t, codes.InvalidIssuer, res.Failure.Code)
	assert.Equal(t, "Invalid issuer", res.Failure.Message)
}

func TestVerifyLeeway(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", fx.keys)

	c := validClaims(prodIssuer, "18+")
	c.ExpiresAt = jwt.NewNumericDate(fixedNow.Add(-30 * time.Second))
	c.NotBefore = jwt.NewNumericDate(fixedNow.Add(30 * time.Second))
	res := v.Verify(context.Background(), fx.prodKey.Sign(t, c))
	assert.True(t, res.OK(), "within 60s leeway: %+v", res.Failure)
}

func TestVerifyDemoModeAcceptsBothIssuers(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "demo", fx.keys)

	for _, tc := range []struct {
		key testutil.Key
		iss string
	}{
		{fx.prodKey, prodIssuer},
		{fx.demoKey, demoIssuer},
		{fx.demoKey, prodIssuer},
	} {
		res := v.Verify(context.Background(), tc.key.Sign(t, validClaims(tc.iss, "18+")))
		assert.True(t, res.OK(), "%s/%s: %+v", tc.key.KID, tc.iss, res.Failure)
	}

	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims("https://other.example", "18+")))
	assert.Equal(t, codes.InvalidIssuer, res.Code())
}

func TestVerifyTiersAreNotCapped(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", fx.keys)
	for _, tier := range []string{"18+", "21+", "99+", "150+"} {
		res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(prodIssuer, tier)))
		assert.True(t, res.OK(), tier)
	}
}

func TestVerifyWithoutAnyKeySet(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", keycache.Static{})
	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(prodIssuer, "21+")))
	assert.Equal(t, codes.UnknownKeyID, res.Code())
}

type panicResolver struct{}

func (panicResolver) Resolve(context.Context, string) (*keycache.KeySet, error) {
	panic("boom")
}

func TestVerifyRecoversPanics(t *testing.T) {
	fx := newFixture(t)
	v := newVerifier(t, "production", panicResolver{})
	res := v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(prodIssuer, "21+")))
	assert.Equal(t, codes.VerifyFailed, res.Code())
}

type outcomeRecorder []string

func (r *outcomeRecorder) VerificationFinished(outcome string) { *r = append(*r, outcome) }

func TestVerifyRecordsOutcome(t *testing.T) {
	fx := newFixture(t)
	rec := &outcomeRecorder{}
	v := newVerifier(t, "production", fx.keys, WithRecorder(rec))

	v.Verify(context.Background(), fx.prodKey.Sign(t, validClaims(prodIssuer, "21+")))
	v.Verify(context.Background(), "garbage")
	assert.Equal(t, []string{"ok", "invalid_input"}, []string(*rec))
}
