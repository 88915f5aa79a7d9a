// Package core wires verification, assertion normalization, cookie issuance
// and event publishing behind the HTTP API.
package core

import (
	"context"
	"net/http"
	"time"

	"github.com/joeydtaylor/agegate/pkg/assertion"
	"github.com/joeydtaylor/agegate/pkg/codes"
	"github.com/joeydtaylor/agegate/pkg/events"
	"github.com/joeydtaylor/agegate/pkg/gate"
	"github.com/joeydtaylor/agegate/pkg/keycache"
	"github.com/joeydtaylor/agegate/pkg/verifier"
	"go.uber.org/zap"
)

// Outcome is what a successful verification hands back to the caller.
type Outcome struct {
	Assertion assertion.Assertion
	Cookie    *http.Cookie
	Payload   gate.Payload
}

type Service struct {
	verifier   *verifier.Verifier
	normalizer *assertion.Normalizer
	keys       keycache.Resolver
	jwksURLs   []string
	events     events.Publisher
	log        *zap.Logger
	now        func() time.Time
}

type ServiceDeps struct {
	Verifier   *verifier.Verifier
	Normalizer *assertion.Normalizer
	Keys       keycache.Resolver
	JWKSURLs   []string
	Events     events.Publisher
	Logger     *zap.Logger
	Clock      func() time.Time
}

func NewService(d ServiceDeps) *Service {
	s := &Service{
		verifier:   d.Verifier,
		normalizer: d.Normalizer,
		keys:       d.Keys,
		jwksURLs:   append([]string(nil), d.JWKSURLs...),
		events:     d.Events,
		log:        d.Logger,
		now:        d.Clock,
	}
	if s.events == nil {
		s.events = events.Noop()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Verify checks token, binds it to sessionID and issues the session cookie.
func (s *Service) Verify(ctx context.Context, token, sessionID string) (Outcome, *codes.Failure) {
	res := s.verifier.Verify(ctx, token)
	a, f := s.normalizer.FromVerification(res, sessionID)
	if f != nil {
		return Outcome{}, f
	}
	return s.issue(ctx, a)
}

// VerifyProvider accepts a foreign provider's result for sessionID.
func (s *Service) VerifyProvider(ctx context.Context, provider string, raw map[string]any, sessionID string) (Outcome, *codes.Failure) {
	a, f := s.normalizer.FromProvider(provider, raw, sessionID)
	if f != nil {
		return Outcome{}, f
	}
	return s.issue(ctx, a)
}

func (s *Service) issue(ctx context.Context, a assertion.Assertion) (Outcome, *codes.Failure) {
	c, p, err := s.normalizer.Issue(a)
	if err != nil {
		s.log.Error("cookie issue failed", zap.String("provider", a.Provider), zap.Error(err))
		return Outcome{}, codes.Fail(codes.VerifyFailed)
	}

	// Relay delivery is best effort; the caller is already verified.
	if err := s.events.Publish(ctx, events.New(events.TypeAssertionIssued, s.now(), a)); err != nil {
		s.log.Warn("assertion event not published", zap.String("provider", a.Provider), zap.Error(err))
	}
	s.log.Info("assertion issued",
		zap.String("provider", a.Provider),
		zap.String("ageTier", a.AgeTier),
		zap.String("verificationType", a.VerificationType),
	)
	return Outcome{Assertion: a, Cookie: c, Payload: p}, nil
}

// WarmUp resolves every configured key set once. Failures are logged only;
// verification falls back to fetching on demand.
func (s *Service) WarmUp(ctx context.Context) {
	for _, u := range s.jwksURLs {
		ks, err := s.keys.Resolve(ctx, u)
		if err != nil {
			s.log.Warn("jwks warm-up failed", zap.String("url", u), zap.Error(err))
			continue
		}
		s.log.Info("jwks warm", zap.String("url", u), zap.Strings("kids", ks.KeyIDs()))
	}
}
