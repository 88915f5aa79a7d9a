package verifier

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TypeVerifiableCredential = "VerifiableCredential"
	TypeAgeTierCredential    = "AgeTierCredential"
)

// Claims is the only accepted token body shape.
type Claims struct {
	jwt.RegisteredClaims
	VC *Credential `json:"vc,omitempty"`
}

type Credential struct {
	Type              []string           `json:"type"`
	CredentialSubject *CredentialSubject `json:"credentialSubject,omitempty"`
}

type CredentialSubject struct {
	AgeTier   string `json:"ageTier"`
	SessionID string `json:"sessionId"`
}

// claimsFromMap lifts verified map claims into Claims. Values of the wrong
// JSON type are left zero so the later checks reject them by their own code.
func claimsFromMap(m jwt.MapClaims) *Claims {
	c := &Claims{}
	c.Issuer, _ = m["iss"].(string)
	c.Subject, _ = m["sub"].(string)
	c.ID, _ = m["jti"].(string)
	c.ExpiresAt, _ = m.GetExpirationTime()
	c.NotBefore, _ = m.GetNotBefore()
	c.IssuedAt, _ = m.GetIssuedAt()
	c.Audience, _ = m.GetAudience()
	c.VC = credentialFrom(m["vc"])
	return c
}

func credentialFrom(raw any) *Credential {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	cred := &Credential{}
	if list, ok := obj["type"].([]any); ok {
		for _, t := range list {
			if s, ok := t.(string); ok {
				cred.Type = append(cred.Type, s)
			}
		}
	}
	if sub, ok := obj["credentialSubject"].(map[string]any); ok {
		cs := &CredentialSubject{}
		cs.AgeTier, _ = sub["ageTier"].(string)
		cs.SessionID, _ = sub["sessionId"].(string)
		cred.CredentialSubject = cs
	}
	return cred
}

func (c *Claims) hasCredentialShape() bool {
	if c.VC == nil || c.VC.CredentialSubject == nil {
		return false
	}
	return slices.Contains(c.VC.Type, TypeVerifiableCredential) &&
		slices.Contains(c.VC.Type, TypeAgeTierCredential)
}

// AgeTier returns the credential subject's tier, or "" when absent.
func (c *Claims) AgeTier() string {
	if c == nil || c.VC == nil || c.VC.CredentialSubject == nil {
		return ""
	}
	return c.VC.CredentialSubject.AgeTier
}

// SessionID returns the credential subject's session id, or "" when absent.
func (c *Claims) SessionID() string {
	if c == nil || c.VC == nil || c.VC.CredentialSubject == nil {
		return ""
	}
	return c.VC.CredentialSubject.SessionID
}
