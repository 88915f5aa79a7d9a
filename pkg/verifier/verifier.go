// Package verifier validates age-tier credential tokens. Verify never returns
// an error or panics: every outcome is a Result with a stable code.
package verifier

import (
	"context"
	"crypto"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joeydtaylor/agegate/pkg/agetier"
	"github.com/joeydtaylor/agegate/pkg/codes"
	"github.com/joeydtaylor/agegate/pkg/keycache"
	"github.com/joeydtaylor/agegate/pkg/policy"
	"go.uber.org/zap"
)

// Algorithm is the single supported signature algorithm.
const Algorithm = "ES256"

const maxTokenBytes = 16 << 10

// Recorder observes the outcome of each verification ("ok" or a code).
type Recorder interface {
	VerificationFinished(outcome string)
}

type Verifier struct {
	keys     keycache.Resolver
	issuers  []string
	jwksURLs []string
	minAge   int
	leeway   time.Duration

	now func() time.Time
	log *zap.Logger
	rec Recorder
}

type Option func(*Verifier)

func WithClock(now func() time.Time) Option { return func(v *Verifier) { v.now = now } }
func WithLogger(l *zap.Logger) Option       { return func(v *Verifier) { v.log = l } }
func WithRecorder(r Recorder) Option        { return func(v *Verifier) { v.rec = r } }

// New binds a Verifier to the issuers, key URLs and minimum age of cfg.
func New(cfg *policy.Config, keys keycache.Resolver, opts ...Option) *Verifier {
	v := &Verifier{
		keys:     keys,
		issuers:  cfg.AcceptedIssuers(),
		jwksURLs: cfg.JWKSURLs(),
		minAge:   cfg.MinAge(),
		leeway:   cfg.Leeway(),
		now:      time.Now,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify runs the full pipeline on a compact token.
func (v *Verifier) Verify(ctx context.Context, token string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("verification panicked", zap.Any("panic", r))
			res = fail(codes.VerifyFailed)
		}
		if v.rec != nil {
			outcome := "ok"
			if !res.OK() {
				outcome = string(res.Code())
			}
			v.rec.VerificationFinished(outcome)
		}
	}()
	return v.verify(ctx, token)
}

type header struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

func (v *Verifier) verify(ctx context.Context, token string) Result {
	// 1) structure
	if token == "" || len(token) > maxTokenBytes || strings.Count(token, ".") != 2 {
		return fail(codes.InvalidInput)
	}
	parts := strings.SplitN(token, ".", 3)

	// 2) header
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return fail(codes.InvalidHeader)
	}
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return fail(codes.InvalidHeader)
	}
	if h.Alg != Algorithm || strings.TrimSpace(h.Kid) == "" {
		return fail(codes.InvalidHeader)
	}

	// 3) key by kid across every trusted key set
	key, ok := v.lookup(ctx, h.Kid)
	if !ok {
		return fail(codes.UnknownKeyID)
	}

	// 4) signature + temporal claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{Algorithm}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	)
	mc := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		code := classify(err)
		if code == codes.VerifyFailed {
			v.log.Warn("token parse failed", zap.String("kid", h.Kid), zap.Error(err))
		}
		return fail(code)
	}
	claims := claimsFromMap(mc)
	now := v.now()
	if claims.ExpiresAt == nil || !now.Before(claims.ExpiresAt.Time.Add(v.leeway)) {
		return fail(codes.TokenExpired)
	}
	if claims.NotBefore != nil && now.Add(v.leeway).Before(claims.NotBefore.Time) {
		return fail(codes.TokenNotYetValid)
	}

	// 5) issuer
	if !v.issuerAccepted(claims.Issuer) {
		return fail(codes.InvalidIssuer)
	}

	// 6) credential shape
	if !claims.hasCredentialShape() {
		return fail(codes.InvalidCredential)
	}

	// 7) tier
	tier, err := agetier.Parse(claims.AgeTier())
	if err != nil {
		return fail(codes.InvalidAgeTier)
	}

	// 8) policy
	if tier < v.minAge {
		return fail(codes.InsufficientAgeTier)
	}
	return success(claims, tier)
}

func (v *Verifier) lookup(ctx context.Context, kid string) (crypto.PublicKey, bool) {
	resolved := 0
	for _, u := range v.jwksURLs {
		ks, err := v.keys.Resolve(ctx, u)
		if err != nil {
			v.log.Warn("jwks unavailable", zap.String("url", u), zap.Error(err))
			continue
		}
		resolved++
		if k, ok := ks.Key(kid); ok {
			return k, true
		}
	}
	if resolved == 0 {
		v.log.Error("no jwks could be resolved", zap.Strings("urls", v.jwksURLs))
	}
	return nil, false
}

// issuerAccepted compares against every accepted issuer in constant time.
func (v *Verifier) issuerAccepted(iss string) bool {
	match := 0
	for _, want := range v.issuers {
		match |= subtle.ConstantTimeCompare([]byte(iss), []byte(want))
	}
	return iss != "" && match == 1
}

func classify(err error) codes.Code {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return codes.TokenExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return codes.TokenNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return codes.InvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed), errors.Is(err, jwt.ErrInvalidType):
		return codes.InvalidInput
	default:
		return codes.VerifyFailed
	}
}
