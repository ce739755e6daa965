// Package validate checks decoded request payloads and order identifiers.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
)

// ErrInvalidID is returned for order ids that are not UUIDs.
var ErrInvalidID = errors.New("order id is not in its proper form")

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	// Report fields by their JSON name, which is what buyers sent.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	en_translations.RegisterDefaultTranslations(validate, translator)
}

// FieldError describes the first field of a payload that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

// Check validates val and returns a *FieldError for the first rule broken.
func Check(val any) error {
	err := validate.Struct(val)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}
	if len(verrors) < 1 {
		return nil
	}

	fe := verrors[0]
	return &FieldError{Field: fe.Field(), Message: fe.Translate(translator)}
}

// NewOrderID returns a fresh order identifier.
func NewOrderID() string {
	return uuid.NewString()
}

func CheckOrderID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}
