// Package httpapi exposes the cached Toggl views and the running timer over
// HTTP.
package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

// A single validator instance is used, because it caches struct parsing.
func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Response is the body of every error response.
type Response struct {
	Error          string  `json:"error"`
	Errors         []Error `json:"errors,omitempty"`
	RetryAfter     string  `json:"retryAfter,omitempty"`
	QuotaRemaining string  `json:"quotaRemaining,omitempty"`
	QuotaResetsIn  string  `json:"quotaResetsIn,omitempty"`
}

// Error is a validation failure scoped to one input field.
type Error struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Write outputs v as JSON with the given status.
func Write(rw http.ResponseWriter, status int, v any) {
	raw, err := encode(v)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(rw, status, raw)
}

func encode(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeRaw(rw http.ResponseWriter, status int, raw []byte) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	_, _ = rw.Write(raw)
}

// Read decodes the request body into value and validates it. It writes a 400
// response and returns false when either step fails.
func Read(rw http.ResponseWriter, r *http.Request, value any) bool {
	err := json.NewDecoder(r.Body).Decode(value)
	if err != nil {
		Write(rw, http.StatusBadRequest, Response{
			Error: fmt.Sprintf("read body: %s", err),
		})
		return false
	}
	err = validate.Struct(value)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		apiErrors := make([]Error, 0, len(validationErrors))
		for _, validationError := range validationErrors {
			apiErrors = append(apiErrors, Error{
				Field:  validationError.Field(),
				Detail: fmt.Sprintf("validation failed for tag %q with value: \"%v\"", validationError.Tag(), validationError.Value()),
			})
		}
		Write(rw, http.StatusBadRequest, Response{
			Error:  "Validation failed.",
			Errors: apiErrors,
		})
		return false
	}
	if err != nil {
		Write(rw, http.StatusInternalServerError, Response{
			Error: fmt.Sprintf("validate body: %s", err),
		})
		return false
	}
	return true
}
