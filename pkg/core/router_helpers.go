package core

import (
	"net/http"

	"github.com/joeydtaylor/agegate/pkg/codec"
	"github.com/joeydtaylor/agegate/pkg/codes"
)

func writeJSON(w http.ResponseWriter, v any, status int) {
	payload, err := codec.JSONStrict.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		payload = []byte(`{"ok":false,"code":"verify_failed","message":"Verification failed"}`)
	}
	w.Header().Set("Content-Type", codec.JSONStrict.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

type failureBody struct {
	OK      bool       `json:"ok"`
	Code    codes.Code `json:"code"`
	Message string     `json:"message"`
}

func writeFailure(w http.ResponseWriter, f *codes.Failure) {
	writeJSON(w, failureBody{Code: f.Code, Message: f.Message}, codes.HTTPStatus(f.Code))
}
