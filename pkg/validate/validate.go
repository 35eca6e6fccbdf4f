// Package validate provides struct-tag validation for request inputs.
//
// Supported rules (comma-separated in the `validate` tag):
//
//	required            field must not be zero/empty
//	nullable            if empty, skip all remaining rules for this field
//	numeric             any number
//	integer             whole number
//	boolean             "true","false","1","0" (or actual bool)
//	min=N               string: min char length | number: min value
//	max=N               string: max char length | number: max value
//	gte=N               number >= N
//	lte=N               number <= N
//	in=a,b,c            value must be one of the listed items
//
// Example:
//
//	type Input struct {
//	    Name  string  `json:"name"  validate:"required,min=1,max=200"`
//	    Price float64 `json:"price" validate:"required,numeric,gte=0"`
//	    Stock int     `json:"stock" validate:"gte=0"`
//	}
package validate

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Struct validates all exported fields of v that carry a `validate` tag.
// Returns a map of fieldName → error message; empty map means no errors.
func Struct(v interface{}) map[string]string {
	errs := make(map[string]string)
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return errs
	}
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		value := rv.Field(i)

		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}

		name := jsonFieldName(field)
		rules := splitRules(tag)

		// If `nullable` is present and field is empty — skip all rules.
		if hasRule(rules, "nullable") && isEmpty(value) {
			continue
		}

		for _, rule := range rules {
			if rule == "nullable" {
				continue
			}
			if msg := applyRule(rule, name, value); msg != "" {
				errs[name] = msg
				break // first failing rule per field
			}
		}
	}

	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

func applyRule(rule, field string, v reflect.Value) string {
	raw := fmt.Sprintf("%v", v.Interface())
	key, param, _ := strings.Cut(rule, "=")

	switch key {
	case "required":
		if isEmpty(v) {
			return fmt.Sprintf("The %s field is required.", field)
		}

	case "numeric":
		if !isNumericKind(v) {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				return fmt.Sprintf("The %s field must be a number.", field)
			}
		}

	case "integer":
		if !isIntKind(v) {
			if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
				return fmt.Sprintf("The %s field must be an integer.", field)
			}
		}

	case "boolean":
		if v.Kind() != reflect.Bool {
			switch strings.ToLower(raw) {
			case "true", "false", "1", "0":
			default:
				return fmt.Sprintf("The %s field must be a boolean.", field)
			}
		}

	case "min":
		n, _ := strconv.ParseFloat(param, 64)
		if size, isStr := sizeOf(v); isStr {
			if float64(size) < n {
				return fmt.Sprintf("The %s field must be at least %s characters.", field, param)
			}
		} else if numValue(v) < n {
			return fmt.Sprintf("The %s field must be at least %s.", field, param)
		}

	case "max":
		n, _ := strconv.ParseFloat(param, 64)
		if size, isStr := sizeOf(v); isStr {
			if float64(size) > n {
				return fmt.Sprintf("The %s field may not be greater than %s characters.", field, param)
			}
		} else if numValue(v) > n {
			return fmt.Sprintf("The %s field may not be greater than %s.", field, param)
		}

	case "gte":
		n, _ := strconv.ParseFloat(param, 64)
		if numValue(v) < n {
			return fmt.Sprintf("The %s field must be greater than or equal to %s.", field, param)
		}

	case "lte":
		n, _ := strconv.ParseFloat(param, 64)
		if numValue(v) > n {
			return fmt.Sprintf("The %s field must be less than or equal to %s.", field, param)
		}

	case "in":
		allowed := strings.Split(param, ",")
		for _, a := range allowed {
			if raw == a {
				return ""
			}
		}
		return fmt.Sprintf("The %s field must be one of: %s.", field, strings.Join(allowed, ", "))
	}

	return ""
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func splitRules(tag string) []string {
	parts := strings.Split(tag, ",")
	var rules []string
	for i := 0; i < len(parts); i++ {
		p := strings.TrimSpace(parts[i])
		if p == "" {
			continue
		}
		// Re-join comma-separated params of an in= rule.
		if strings.HasPrefix(p, "in=") {
			for i+1 < len(parts) && !strings.Contains(parts[i+1], "=") && !isRuleName(parts[i+1]) {
				i++
				p += "," + strings.TrimSpace(parts[i])
			}
		}
		rules = append(rules, p)
	}
	return rules
}

func isRuleName(s string) bool {
	switch strings.TrimSpace(s) {
	case "required", "nullable", "numeric", "integer", "boolean":
		return true
	}
	return false
}

func hasRule(rules []string, name string) bool {
	for _, r := range rules {
		if r == name {
			return true
		}
	}
	return false
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return strings.TrimSpace(v.String()) == ""
	case reflect.Slice, reflect.Map, reflect.Array:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

func isNumericKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isIntKind(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// sizeOf returns (length, true) for strings; (0, false) otherwise.
func sizeOf(v reflect.Value) (int, bool) {
	if v.Kind() == reflect.String {
		return len(v.String()), true
	}
	return 0, false
}

func numValue(v reflect.Value) float64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		return v.Float()
	default:
		f, _ := strconv.ParseFloat(fmt.Sprintf("%v", v.Interface()), 64)
		return f
	}
}
