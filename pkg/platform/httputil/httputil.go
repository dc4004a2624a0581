// Package httputil is the single place handlers encode responses and errors.
// Domain errors map onto the JSON error envelope {error, error_description};
// server-side failures hide their description from clients.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "collecta/pkg/domain-errors"
)

// WriteJSON encodes v with the given status. Encoding failures cannot be
// reported to the client at this point; they are swallowed.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError maps a domain error onto the HTTP error envelope. Errors that
// carry no domain code degrade to internal_error.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := dErrors.ToHTTPStatus(code)

	envelope := errorEnvelope{Error: errorLabel(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			envelope.Description = de.Message
		}
	}
	WriteJSON(w, status, envelope)
}

func errorLabel(code dErrors.Code) string {
	switch code {
	case dErrors.CodeInternal:
		return "internal_error"
	case dErrors.CodeValidation:
		return "validation_error"
	default:
		return string(code)
	}
}

// DecodeJSON strictly decodes a request body into dst, rejecting unknown
// fields and trailing garbage.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "unexpected trailing data")
	}
	return nil
}
