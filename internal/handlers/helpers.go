package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/handoff/internal/interfaces"
	"github.com/ternarybob/handoff/internal/services/documents"
	"github.com/ternarybob/handoff/internal/services/editor"
	"github.com/ternarybob/handoff/internal/services/rewrite"
	"github.com/ternarybob/handoff/internal/services/tracker"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// WriteServiceError maps a service error onto its HTTP status
func WriteServiceError(w http.ResponseWriter, err error) error {
	return WriteError(w, StatusForError(err), err.Error())
}

// StatusForError returns the HTTP status for a service error
func StatusForError(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrNotFound), errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrVersionConflict),
		errors.Is(err, editor.ErrBusy),
		errors.Is(err, editor.ErrSurfaceLocked),
		errors.Is(err, tracker.ErrSaveInFlight),
		errors.Is(err, rewrite.ErrRewriteBusy):
		return http.StatusConflict
	case errors.Is(err, documents.ErrInvalidRequest),
		errors.Is(err, tracker.ErrSaveNotAllowed),
		errors.Is(err, editor.ErrEmptyContent),
		errors.Is(err, editor.ErrEmptyPrompt),
		errors.Is(err, editor.ErrNoPatient),
		errors.Is(err, rewrite.ErrNotCaptured),
		errors.Is(err, rewrite.ErrNotExpanded),
		errors.Is(err, rewrite.ErrEmptyInstruction):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes and validates the request body into v.
// Returns false after writing a 400 response when the body is unusable.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "Request body is required")
		} else {
			WriteError(w, http.StatusBadRequest, "Invalid JSON request body")
		}
		return false
	}
	if err := validate.Struct(v); err != nil {
		WriteError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fmt.Sprintf("Missing '%s' in request body", fe.Field())
	}
	return fmt.Sprintf("Invalid '%s' in request body", fe.Field())
}

// PathSegments returns the non-empty path segments after prefix
func PathSegments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
