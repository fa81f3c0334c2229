// Package validation adapts go-playground/validator to echo's Validator
// interface so handlers can bind-then-validate request bodies.
package validation

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

// Validator validates request structs against their validate tags
type Validator struct {
	validate *validator.Validate
}

// New creates a new request validator
func New() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator. Failures come back as 400s with one
// line per failed field.
func (v *Validator) Validate(i any) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed rule '%s'", fe.Field(), fe.Tag()))
	}
	return httperror.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}
