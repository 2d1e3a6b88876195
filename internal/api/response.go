package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nurdspace/nurdbar/internal/imaging"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/model"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, errorBody{Error: message})
}

// writeError maps a domain error onto a status code. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	var (
		verr  *validationError
		stock *model.InsufficientStockError
		dup   *model.DuplicateKeyError
	)
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, errorBody{Error: verr.msg, Details: verr.details})
	case errors.As(err, &stock):
		jsonResponse(w, http.StatusConflict, errorBody{
			Error: "insufficient stock",
			Details: map[string]any{
				"barcode":   stock.Barcode,
				"available": stock.Available,
				"requested": stock.Requested,
			},
		})
	case errors.As(err, &dup):
		jsonResponse(w, http.StatusConflict, errorBody{
			Error:   "duplicate " + dup.Field,
			Details: map[string]string{dup.Field: dup.Value},
		})
	case errors.Is(err, model.ErrAmbiguousBarcode):
		jsonError(w, http.StatusConflict, "barcode is already used by a member or an item")
	case errors.Is(err, model.ErrUnknownMember):
		jsonError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, model.ErrUnknownItem):
		jsonError(w, http.StatusNotFound, "item not found")
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrInvalidAmount):
		jsonError(w, http.StatusBadRequest, "invalid amount")
	case errors.Is(err, model.ErrReservedBarcode):
		jsonError(w, http.StatusBadRequest, "barcode is reserved for payments")
	case errors.Is(err, imaging.ErrUnsupported):
		jsonError(w, http.StatusUnsupportedMediaType, "unsupported image format")
	case errors.Is(err, imaging.ErrTooLarge):
		jsonError(w, http.StatusRequestEntityTooLarge, "image too large")
	case errors.Is(err, model.ErrStoreUnavailable):
		log.Error(ctx, "store unavailable", err)
		jsonError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		log.Error(ctx, "request failed", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// validationError is a client input error with per-field details.
type validationError struct {
	msg     string
	details map[string]string
}

func (e *validationError) Error() string {
	return e.msg
}

func invalid(msg string) error {
	return &validationError{msg: msg}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON decodes a JSON request body into target and validates it.
// Unknown fields are rejected.
func decodeJSON(r *http.Request, target any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
		r.Body.Close()
	}()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return &validationError{msg: "invalid request body", details: map[string]string{"body": err.Error()}}
	}
	if err := validate.Struct(target); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return &validationError{msg: "validation failed"}
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
	}
	return &validationError{msg: "validation failed", details: details}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("invalid " + name)
	}
	return id, nil
}
