package utils

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool                       `json:"is_valid"`
	Errors  map[string]ValidationError `json:"errors,omitempty"`
}

// Validator validates structs using `validate` tags before any request
// leaves the client. Supported rules: required, min=N, max=N, oneof=a b c,
// email.
type Validator struct {
	errors map[string]ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make(map[string]ValidationError),
	}
}

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateStruct validates a struct using reflection and validation tags
func (v *Validator) ValidateStruct(s interface{}) *ValidationResult {
	v.errors = make(map[string]ValidationError)

	val := reflect.ValueOf(s)
	typ := reflect.TypeOf(s)

	if val.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}

	if val.Kind() != reflect.Struct {
		v.addError("_root", "Value must be a struct", "")
		return v.getResult()
	}

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanInterface() {
			continue
		}

		fieldName := jsonFieldName(fieldType)

		validateTag := fieldType.Tag.Get("validate")
		if validateTag == "" || validateTag == "-" {
			continue
		}

		for _, rule := range strings.Split(validateTag, ",") {
			v.applyRule(fieldName, field, strings.TrimSpace(rule))
		}
	}

	return v.getResult()
}

// applyRule applies a single validation rule to a field value
func (v *Validator) applyRule(fieldName string, field reflect.Value, rule string) {
	name, param := rule, ""
	if idx := strings.Index(rule, "="); idx != -1 {
		name, param = rule[:idx], rule[idx+1:]
	}

	switch name {
	case "required":
		if isEmptyValue(field) {
			v.addError(fieldName, "This field is required", "")
		}
	case "min":
		limit, err := strconv.Atoi(param)
		if err != nil {
			return
		}
		if size, ok := sizeOf(field); ok && !isEmptyForOptional(field) && size < limit {
			v.addError(fieldName, fmt.Sprintf("Must be at least %d", limit), stringOf(field))
		}
	case "max":
		limit, err := strconv.Atoi(param)
		if err != nil {
			return
		}
		if size, ok := sizeOf(field); ok && size > limit {
			v.addError(fieldName, fmt.Sprintf("Must be at most %d", limit), stringOf(field))
		}
	case "oneof":
		if field.Kind() != reflect.String || field.String() == "" {
			return
		}
		for _, allowed := range strings.Fields(param) {
			if field.String() == allowed {
				return
			}
		}
		v.addError(fieldName, fmt.Sprintf("Must be one of: %s", param), field.String())
	case "email":
		if field.Kind() == reflect.String && field.String() != "" && !emailRegex.MatchString(field.String()) {
			v.addError(fieldName, "Must be a valid email address", field.String())
		}
	}
}

// addError records a validation error for a field
func (v *Validator) addError(field, message, value string) {
	v.errors[field] = ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// getResult builds the final validation result
func (v *Validator) getResult() *ValidationResult {
	result := &ValidationResult{
		IsValid: len(v.errors) == 0,
	}
	if len(v.errors) > 0 {
		result.Errors = v.errors
	}
	return result
}

// FirstError returns one error message from the result, for single-line UIs
func (r *ValidationResult) FirstError() string {
	for _, e := range r.Errors {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return ""
}

// jsonFieldName returns the json tag name of a struct field, or the Go name
func jsonFieldName(f reflect.StructField) string {
	jsonTag := f.Tag.Get("json")
	if jsonTag == "" || jsonTag == "-" {
		return f.Name
	}
	if commaIdx := strings.Index(jsonTag, ","); commaIdx != -1 {
		return jsonTag[:commaIdx]
	}
	return jsonTag
}

// isEmptyValue reports whether a field counts as unset for "required"
func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	default:
		return false
	}
}

// isEmptyForOptional reports whether min/max should be skipped because the
// optional field is unset; "required" catches genuinely mandatory fields.
func isEmptyForOptional(v reflect.Value) bool {
	return v.Kind() == reflect.String && v.String() == ""
}

// sizeOf returns the comparable size of a field for min/max rules
func sizeOf(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.String:
		return len(v.String()), true
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(v.Int()), true
	default:
		return 0, false
	}
}

// stringOf renders a field value for error reporting
func stringOf(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	default:
		return ""
	}
}
