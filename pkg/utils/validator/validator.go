// Package validator wraps go-playground/validator with English and Ukrainian
// error messages and the consultant's custom rules.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/uk"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangUK = "uk"
)

// Validator wraps go-playground/validator with additional features.
type Validator struct {
	validate  *validator.Validate
	uni       *ut.UniversalTranslator
	trans     map[string]ut.Translator
	languages map[string]struct{}
	mu        sync.RWMutex
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the process-wide validator.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a new Validator instance with default configuration.
func New() *Validator {
	v := &Validator{
		validate:  validator.New(),
		trans:     make(map[string]ut.Translator),
		languages: map[string]struct{}{"uk": {}, "en": {}, "pl": {}},
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	ukLocale := uk.New()
	v.uni = ut.New(enLocale, enLocale, ukLocale)

	enTrans, _ := v.uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	ukTrans, _ := v.uni.GetTranslator(LangUK)
	v.trans[LangUK] = ukTrans

	v.registerCustomRules()
	v.registerTranslations()

	return v
}

// SetLanguages replaces the set accepted by the "language" tag.
func (v *Validator) SetLanguages(langs []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.languages = make(map[string]struct{}, len(langs))
	for _, l := range langs {
		v.languages[strings.ToLower(strings.TrimSpace(l))] = struct{}{}
	}
}

// SupportsLanguage reports whether lang is configured.
func (v *Validator) SupportsLanguage(lang string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.languages[lang]
	return ok
}

// Validate validates a struct with English messages.
func (v *Validator) Validate(s any) error {
	if errs := v.ValidateWithLang(s, LangEN); errs != nil {
		return errs
	}
	return nil
}

// ValidateWithLang validates a struct and translates the errors.
// Returns nil when the struct is valid.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ValidationErrors{Errors: []FieldError{{Message: err.Error()}}}
	}
	return v.translateErrors(verrs, v.translator(lang))
}

// Engine exposes the underlying validator, e.g. for gin's binding.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) translator(lang string) ut.Translator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if t, ok := v.trans[strings.ToLower(lang)]; ok {
		return t
	}
	return v.trans[LangEN]
}

func (v *Validator) translateErrors(errs validator.ValidationErrors, trans ut.Translator) *ValidationErrors {
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Validate(s)
}

// StructWithLang validates s with the global validator in the given language.
func StructWithLang(s any, lang string) *ValidationErrors {
	return Global().ValidateWithLang(s, lang)
}
