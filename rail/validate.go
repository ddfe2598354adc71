package rail

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// sharedValidator mirrors discovery's package-level validator.Validate
// instance (same dc4eu-vc helpers.NewValidator grounding): one compiled
// instance, reporting field names from the json tag.
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

// Validate runs the go-playground/validator/v10 struct-tag pass over c
// (§3 DOMAIN STACK: "C10 rail — struct-tag pass over ... rail Config
// types"). Adapter constructors (stripe.New, inference.New) accept a Config
// as already having passed this check; Validate is the gate a caller runs
// once when building an adapter from external configuration.
func (c Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok || len(verrs) == 0 {
			return newAdapterErrorFromValidation(c.Rail, "", err.Error())
		}
		first := verrs[0]
		return newAdapterErrorFromValidation(c.Rail, first.Field(), "failed '"+first.Tag()+"' validation")
	}
	return nil
}

func newAdapterErrorFromValidation(railName, field, message string) error {
	return &AdapterError{Rail: railName, Stage: StageValidate, Code: ErrCodeMissingField, Message: message, Field: field}
}
