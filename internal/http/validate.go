package httpapi

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"campusevents-backend/internal/services"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator checks request payloads and renders failures in English.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String())
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)
	custom := map[string]string{
		"hhmm":     "{0} must be a time in HH:MM format",
		"isodate":  "{0} must be a date in YYYY-MM-DD format",
		"strongpw": "{0} must be 8 to 72 bytes long and include upper and lower case letters, a number and a special character",
	}
	for tag, text := range custom {
		tag, text := tag, text
		_ = v.RegisterTranslation(tag, trans, func(t ut.Translator) error {
			return t.Add(tag, text, true)
		}, func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		})
	}
	return &Validator{validate: v, trans: trans}
}

// Struct returns human readable problems with payload, or nil.
func (v *Validator) Struct(payload interface{}) []string {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fe.Translate(v.trans))
	}
	return out
}

// StrongPassword also caps the length in bytes, which is what bcrypt
// limits.
func StrongPassword(pw string) bool {
	if len(pw) < 8 || len(pw) > services.MaxPasswordBytes {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return lower && upper && digit && special
}
