package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Evaluation target language must be one the prompts support
	validate.RegisterValidation("eval_language", func(fl validator.FieldLevel) bool {
		lang := fl.Field().String()
		if lang == "" {
			return false
		}
		for _, l := range SupportedLanguages {
			if lang == l {
				return true
			}
		}
		return false
	})
}

// SupportedLanguages lists the languages users may request evaluation feedback in.
var SupportedLanguages = []string{
	"Arabic", "Azerbaijani", "Belarusian", "Bengali", "Catalan", "Chamorro",
	"Chinese", "Czech", "Danish", "Dutch", "English", "Estonian", "Finnish",
	"French", "Georgian", "German", "Greek", "Greenlandic", "Hindi", "Italian",
	"Japanese", "Khmer", "Persian", "Polish", "Portuguese", "Russian", "Spanish",
	"Swahili", "Turkish", "Urdu",
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "email":
			errors[field] = "Invalid email format"
		case "min":
			errors[field] = "Value is too short (min: " + err.Param() + ")"
		case "max":
			errors[field] = "Value is too long (max: " + err.Param() + ")"
		case "gte":
			errors[field] = "Value must be at least " + err.Param()
		case "lte":
			errors[field] = "Value must be at most " + err.Param()
		case "uuid":
			errors[field] = "Invalid identifier"
		case "eval_language":
			errors[field] = "Unsupported evaluation language"
		default:
			errors[field] = "Invalid value"
		}
	}

	return errors
}

// ValidateVar validates a single variable
func ValidateVar(field interface{}, tag string) error {
	return validate.Var(field, tag)
}
