// Package validator wraps the go-playground validator with EN translations.
package validator

import (
	"context"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"

	"github.com/partdex/partdex/internal/pkg/utils/errors"
)

// Rule is a custom validation rule.
type Rule struct {
	Tag  string
	Func validator.Func
}

type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func New(rules ...Rule) *Validator {
	validate := validator.New()

	// Register default EN translator
	enLocale := en.New()
	translator, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(errors.New("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(errors.Errorf("translator was not registered: %w", err))
	}

	// Register custom validation rules
	for _, rule := range rules {
		if err := validate.RegisterValidation(rule.Tag, rule.Func); err != nil {
			panic(err)
		}
	}

	// Use configKey or JSON field names in error messages, if present
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("configKey")
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		}
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: validate, translator: translator}
}

// Validate a struct by the "validate" tags.
// All violations are aggregated to one MultiError.
func (v *Validator) Validate(ctx context.Context, value any) error {
	if err := v.validate.StructCtx(ctx, value); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			errs := errors.NewMultiError()
			for _, fieldErr := range validationErrs {
				errs.Append(errors.New(fieldErr.Translate(v.translator)))
			}
			return errs.ErrorOrNil()
		}
		return err
	}
	return nil
}
