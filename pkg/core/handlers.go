package core

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/agegate/pkg/codec"
	"github.com/joeydtaylor/agegate/pkg/codes"
	"github.com/joeydtaylor/agegate/pkg/gate"
)

// LevelHeader carries the verified tier on successful gate checks.
const LevelHeader = "X-Age-Verified-Level"

type handlers struct {
	svc   *Service
	gates *gate.Manager
}

type verifyRequest struct {
	Token     string `json:"token"`
	SessionID string `json:"sessionId"`
}

type providerRequest struct {
	SessionID string         `json:"sessionId"`
	Result    map[string]any `json:"result"`
}

type verifyResponse struct {
	OK    bool   `json:"ok"`
	Level string `json:"level"`
	Exp   int64  `json:"exp"`
}

type statusResponse struct {
	GateRequired bool   `json:"gateRequired"`
	Verified     bool   `json:"verified"`
	Level        string `json:"level,omitempty"`
	Exp          int64  `json:"exp,omitempty"`
}

func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := codec.JSONStrict.Decode(r.Body, &in); err != nil {
		writeFailure(w, codes.Fail(codes.InvalidInput))
		return
	}
	out, f := h.svc.Verify(r.Context(), in.Token, in.SessionID)
	h.respond(w, out, f)
}

func (h *handlers) verifyProvider(w http.ResponseWriter, r *http.Request) {
	var in providerRequest
	if err := codec.JSONStrict.Decode(r.Body, &in); err != nil {
		writeFailure(w, codes.Fail(codes.InvalidInput))
		return
	}
	out, f := h.svc.VerifyProvider(r.Context(), chi.URLParam(r, "provider"), in.Result, in.SessionID)
	h.respond(w, out, f)
}

func (h *handlers) respond(w http.ResponseWriter, out Outcome, f *codes.Failure) {
	if f != nil {
		writeFailure(w, f)
		return
	}
	http.SetCookie(w, out.Cookie)
	writeJSON(w, verifyResponse{OK: true, Level: out.Payload.Level, Exp: out.Payload.Exp}, http.StatusOK)
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	d := h.gates.Decide(r.Header, gate.CookieMap(r))
	resp := statusResponse{GateRequired: d.Required, Verified: d.Verified}
	if d.Verified {
		resp.Level = d.Payload.Level
		resp.Exp = d.Payload.Exp
	}
	writeJSON(w, resp, http.StatusOK)
}

func (h *handlers) gateCheck(w http.ResponseWriter, r *http.Request) {
	d := h.gates.Decide(r.Header, gate.CookieMap(r))
	if !d.Allowed() {
		writeJSON(w, map[string]bool{"required": true}, http.StatusUnauthorized)
		return
	}
	if d.Verified {
		w.Header().Set(LevelHeader, d.Payload.Level)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.gates.Clear())
	w.WriteHeader(http.StatusNoContent)
}
