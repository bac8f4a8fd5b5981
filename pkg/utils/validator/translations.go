package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

func (v *Validator) registerTranslations() {
	if t := v.trans[LangEN]; t != nil {
		for tag, msg := range map[string]string{
			TagLanguage:  "{0} must be one of the supported languages",
			TagSessionID: "{0} must contain only letters, digits, '-' or '_' (up to 64 characters)",
			TagTrimmed:   "{0} must not be blank",
		} {
			registerTranslation(v.validate, t, tag, msg)
		}
	}

	// Базові правила перекладаються вручну: для uk немає готового пакета.
	if t := v.trans[LangUK]; t != nil {
		for tag, msg := range map[string]string{
			"required":   "{0} є обов'язковим полем",
			"email":      "{0} має бути дійсною адресою email",
			"min":        "{0} занадто коротке",
			"max":        "{0} занадто довге",
			"gte":        "{0} замале",
			"lte":        "{0} завелике",
			"oneof":      "{0} має недопустиме значення",
			"url":        "{0} має бути дійсним URL",
			TagLanguage:  "{0} має бути однією з підтримуваних мов",
			TagSessionID: "{0} може містити лише літери, цифри, '-' або '_' (до 64 символів)",
			TagTrimmed:   "{0} не може бути порожнім",
		} {
			registerTranslation(v.validate, t, tag, msg)
		}
	}
}

func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}
