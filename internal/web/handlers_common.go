package web

// This file contains shared utilities and helper functions used across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/excel-analytics/internal/core"
)

// maxJSONBody caps JSON request bodies. Chart configs can carry a full data
// set, so this is well above a typical form.
const maxJSONBody = 5 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError carries one message per rejected field.
type validationError struct {
	fields []string
}

func (e *validationError) Error() string {
	return "invalid request: " + strings.Join(e.fields, "; ")
}

func (e *validationError) Unwrap() error {
	return core.ErrInvalidRequest
}

// validationDetails returns the per-field messages of a validation error.
func validationDetails(err error) []string {
	var ve *validationError
	if errors.As(err, &ve) {
		return ve.fields
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please provide a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must have at least %s items", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// validateStruct runs the validate tags of v.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	ve := &validationError{}
	for _, fe := range verrs {
		ve.fields = append(ve.fields, fieldMessage(fe))
	}
	return ve
}

// decodeJSON reads a JSON body into dst and validates it. An empty body
// decodes as an empty object.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrInvalidRequest, err)
	}
	return validateStruct(dst)
}

// writeJSON encodes v as the response body with the given status.
// Encoding errors are only logged since the header is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parsePage reads ?page= and ?limit=.
func parsePage(r *http.Request) core.Page {
	return core.Page{
		Page:  parseIntParam(r, "page", 1),
		Limit: parseIntParam(r, "limit", core.DefaultPageLimit),
	}.Normalize()
}

// parseSort reads ?sortBy= and ?sortOrder=, restricted to allowed.
func parseSort(r *http.Request, allowed []string) core.Sort {
	q := r.URL.Query()
	return core.NewSort(q.Get("sortBy"), q.Get("sortOrder"), allowed)
}

// message is the body of responses that only confirm an action.
type message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(msg string) message {
	return message{Success: true, Message: msg}
}
