package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagLanguage  = "language"   // configured dialogue language
	TagSessionID = "session_id" // opaque session id
	TagTrimmed   = "notblank"   // non-empty after trimming
)

var sessionIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func (v *Validator) registerCustomRules() {
	_ = v.validate.RegisterValidation(TagLanguage, func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return v.SupportsLanguage(value)
	})
	_ = v.validate.RegisterValidation(TagSessionID, validateSessionID)
	_ = v.validate.RegisterValidation(TagTrimmed, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidSessionID reports whether s is a well-formed session id.
func ValidSessionID(s string) bool {
	return sessionIDRegex.MatchString(s)
}

func validateSessionID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return ValidSessionID(value)
}
