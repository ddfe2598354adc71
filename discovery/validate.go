package discovery

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// sharedValidator is a single package-level *validator.Validate instance,
// grounded on the dc4eu-vc helpers package's NewValidator: struct tags are
// read against each field's `validate:"..."` tag, and reported field names
// come from the `json` tag rather than the Go field name.
var (
	sharedValidatorOnce sync.Once
	sharedValidator     *validator.Validate
)

func getValidator() *validator.Validate {
	sharedValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		sharedValidator = v
	})
	return sharedValidator
}

// fieldErrorsToValidationError converts the first validator.FieldError into
// the package's own ValidationError shape, so callers only ever see
// *ValidationError regardless of which layer rejected the document.
func fieldErrorsToValidationError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return newValidationError(ErrCodeDiscoveryShape, err.Error(), "")
	}
	first := verrs[0]
	return newValidationError(ErrCodeDiscoveryRequired,
		"failed '"+first.Tag()+"' validation", first.Field())
}

// Validate runs the go-playground/validator/v10 struct-tag pass over p,
// covering the fields hand checks in trust.go don't reach: PolicyVersion and
// Mode presence, Mode's closed vocabulary, and that every IssuerAllowlist
// entry is a well-formed URL. IssuerAllowed/FindPin remain the runtime
// evaluators; Validate is the static shape gate a caller runs once when a
// policy is loaded.
func (p *VerifierPolicy) Validate() error {
	if err := getValidator().Struct(p); err != nil {
		return fieldErrorsToValidationError(err)
	}
	return nil
}

// Validate runs the struct-tag pass over cfg: required version/issuer/jwks_uri
// and URL shape for the latter two. ParseIssuerConfig calls this after the
// JSON decode; the line-oriented ParseManifest does its own required-field
// checks and does not call it.
func (cfg *IssuerConfig) Validate() error {
	if err := getValidator().Struct(cfg); err != nil {
		return fieldErrorsToValidationError(err)
	}
	return nil
}
