package server

import (
	"encoding/json"
	"errors"
	"net/http"

	errs "github.com/matzehuels/stackbom/pkg/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    errs.Code `json:"code"`
	Message string    `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errs.GetCode(err)
	if code == "" {
		code = errs.ErrCodeInternal
	}
	writeJSON(w, statusFor(err, code), errorBody{Code: code, Message: errs.UserMessage(err)})
}

func statusFor(err error, code errs.Code) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch code {
	case errs.ErrCodeInvalidInput, errs.ErrCodeInvalidDocument, errs.ErrCodeInvalidIdentifier,
		errs.ErrCodeInvalidPath, errs.ErrCodeUnsupportedSchema:
		return http.StatusBadRequest
	case errs.ErrCodeUnsupported:
		return http.StatusUnsupportedMediaType
	case errs.ErrCodeNotFound, errs.ErrCodeFileNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
