package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"parliament-api/models"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
	Value   string `json:"value,omitempty"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return strings.Join(messages, "; ")
}

var (
	slugPattern       = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	billNumberPattern = regexp.MustCompile(`^[CSTU]-\d{1,4}[A-Z]?$`)
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Provinces and territories as used in riding data.
var provinces = map[string]bool{
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NS": true, "NT": true,
	"NU": true, "ON": true, "PE": true, "QC": true, "SK": true, "YT": true,
}

// New creates a new validator instance
func New() *Validator {
	v := validator.New()

	// Report fields by their JSON name, or query name for filter structs.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	v.RegisterValidation("slug", validateSlug)
	v.RegisterValidation("session", validateSession)
	v.RegisterValidation("province", validateProvince)
	v.RegisterValidation("billnumber", validateBillNumber)
	v.RegisterValidation("dateformat", validateDateFormat)

	return &Validator{validate: v}
}

// Validate validates a struct and returns validation errors
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var validationErrs ValidationErrors
	for _, err := range fieldErrs {
		validationErrs = append(validationErrs, ValidationError{
			Field:   err.Field(),
			Message: msgForTag(err),
			Tag:     err.Tag(),
			Value:   fmt.Sprintf("%v", err.Value()),
		})
	}

	return validationErrs
}

// Var validates a single value, e.g. a route parameter, against a tag.
func (v *Validator) Var(field string, value any, tag string) error {
	err := v.validate.Var(value, tag)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var validationErrs ValidationErrors
	for _, fe := range fieldErrs {
		validationErrs = append(validationErrs, ValidationError{
			Field:   field,
			Message: strings.Replace(msgForTag(fe), fe.Field(), field, 1),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
		})
	}
	return validationErrs
}

// msgForTag returns a human-readable error message for a validation tag
func msgForTag(fe validator.FieldError) string {
	field := fe.Field()

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "slug":
		return fmt.Sprintf("%s must be a lowercase slug like pablo-rodriguez", field)
	case "session":
		return fmt.Sprintf("%s must be a session code like 44-1", field)
	case "province":
		return fmt.Sprintf("%s must be a two-letter province or territory code", field)
	case "billnumber":
		return fmt.Sprintf("%s must be a bill number like C-11 or S-5", field)
	case "dateformat":
		return fmt.Sprintf("%s must be in YYYY-MM-DD format", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// Custom validators

func validateSlug(fl validator.FieldLevel) bool {
	slug := fl.Field().String()
	return len(slug) <= 100 && slugPattern.MatchString(slug)
}

func validateSession(fl validator.FieldLevel) bool {
	_, _, err := models.ParseSession(fl.Field().String())
	return err == nil
}

func validateProvince(fl validator.FieldLevel) bool {
	return provinces[strings.ToUpper(fl.Field().String())]
}

// validateBillNumber accepts any case; numbers are upper-cased on lookup.
func validateBillNumber(fl validator.FieldLevel) bool {
	return billNumberPattern.MatchString(models.NormalizeBillNumber(fl.Field().String()))
}

func validateDateFormat(fl validator.FieldLevel) bool {
	return datePattern.MatchString(fl.Field().String())
}
