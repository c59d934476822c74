package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	contractx "github.com/tanpawarit/Chative-Commerce-Tools/agent/contract"
	toolx "github.com/tanpawarit/Chative-Commerce-Tools/agent/tool"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string                 `json:"error"`
	Details []contractx.FieldError `json:"details,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes. Store and internal
// failures are logged with their cause and answered with a generic body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch contractx.KindOf(err) {
	case contractx.KindValidation:
		body := errorBody{Error: "validation failed"}
		var verr *contractx.ValidationError
		if errors.As(err, &verr) {
			body.Details = verr.Fields
		} else {
			body.Details = []contractx.FieldError{{Message: err.Error()}}
		}
		writeJSON(w, http.StatusBadRequest, body)
	case contractx.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case contractx.KindConflict:
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case contractx.KindForbidden:
		writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
	default:
		zerolog.Ctx(r.Context()).Error().
			Err(err).
			Str("component", "api").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// readObject decodes the request body as one JSON object.
func readObject(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, contractx.NewValidationError(contractx.FieldError{
			Field:   "body",
			Rule:    "json",
			Message: fmt.Sprintf("body must be a JSON object: %v", err),
		})
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

// decodeBody reads the body and validates it against I, the same contract the tools use.
func decodeBody[I any](r *http.Request, overrides map[string]any) (I, error) {
	body, err := readObject(r)
	if err != nil {
		var zero I
		return zero, err
	}
	for k, v := range overrides {
		body[k] = v
	}
	return toolx.DecodeInput[I](body)
}
