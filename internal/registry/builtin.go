// internal/registry/builtin.go
package registry

import (
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/fieldkeeper/fieldkeeper/internal/types"
)

/*
 * Built-in field types.
 *
 * The vocabulary mirrors the common custom-field set: scalar inputs (text,
 * textarea, number, email, url, date), choice inputs (select, true_false),
 * media references (image) and the three composite types (group, repeater,
 * flexible_content). Composite types validate only shape limits here;
 * their nested field sets are walked by the engine.
 *
 * Validation reports plain-language reasons because they surface to
 * operators verbatim inside types.ValidationError.
 */

func builtins() []FieldType {
	return []FieldType{
		textType{name: "text"},
		textType{name: "textarea", multiline: true},
		numberType{},
		emailType{},
		urlType{},
		trueFalseType{},
		selectType{},
		imageType{},
		dateType{},
		groupType{},
		repeaterType{},
		flexibleContentType{},
	}
}

// requireCheck enforces the shared required flag. Empty values are the
// empty string, nil, and empty slices/maps.
func requireCheck(value any, cfg types.Config) error {
	if cfg.Bool("required") && isEmptyValue(value) {
		return fmt.Errorf("a value is required")
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// valueString renders any stored value as its raw string form.
func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		if t {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// --- text / textarea ---

type textType struct {
	name      string
	multiline bool
}

func (t textType) Name() string { return t.name }

func (t textType) Defaults() types.Config {
	return types.Config{
		"required":      false,
		"default_value": "",
		"placeholder":   "",
		"maxlength":     float64(0),
	}
}

func (t textType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	s := valueString(value)
	if max := int(cfg.Float("maxlength")); max > 0 && len(s) > max {
		return fmt.Errorf("value is longer than %d characters", max)
	}
	return nil
}

func (t textType) Sanitize(raw any) any {
	s := valueString(raw)
	if !t.multiline {
		s = strings.ReplaceAll(s, "\n", " ")
		s = strings.ReplaceAll(s, "\r", "")
	}
	return strings.TrimSpace(s)
}

func (t textType) Format(value any) string { return valueString(value) }

func (t textType) Contract() Contract {
	widget := "text"
	if t.multiline {
		widget = "textarea"
	}
	return Contract{Widget: widget}
}

// --- number ---

type numberType struct{}

func (numberType) Name() string { return "number" }

func (numberType) Defaults() types.Config {
	return types.Config{
		"required":      false,
		"default_value": nil,
		"min":           nil,
		"max":           nil,
		"step":          float64(1),
	}
}

func (numberType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	if isEmptyValue(value) {
		return nil
	}
	f, err := strconv.ParseFloat(valueString(value), 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", valueString(value))
	}
	if cfg.Has("min") && cfg["min"] != nil && f < cfg.Float("min") {
		return fmt.Errorf("value must be at least %v", cfg.Float("min"))
	}
	if cfg.Has("max") && cfg["max"] != nil && f > cfg.Float("max") {
		return fmt.Errorf("value must be at most %v", cfg.Float("max"))
	}
	return nil
}

func (numberType) Sanitize(raw any) any {
	switch raw.(type) {
	case float64, int, int64:
		return raw
	}
	s := strings.TrimSpace(valueString(raw))
	if s == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s // invalid input survives sanitization; Validate rejects it
}

func (numberType) Format(value any) string { return valueString(value) }

func (numberType) Contract() Contract { return Contract{Widget: "number"} }

// --- email ---

type emailType struct{}

func (emailType) Name() string { return "email" }

func (emailType) Defaults() types.Config {
	return types.Config{"required": false, "default_value": "", "placeholder": ""}
}

func (emailType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	s := valueString(value)
	if s == "" {
		return nil
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("%q is not a valid email address", s)
	}
	return nil
}

func (emailType) Sanitize(raw any) any { return strings.TrimSpace(valueString(raw)) }

func (emailType) Format(value any) string { return valueString(value) }

func (emailType) Contract() Contract { return Contract{Widget: "email"} }

// --- url ---

type urlType struct{}

func (urlType) Name() string { return "url" }

func (urlType) Defaults() types.Config {
	return types.Config{"required": false, "default_value": "", "placeholder": ""}
}

func (urlType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	s := valueString(value)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not a valid URL", s)
	}
	return nil
}

func (urlType) Sanitize(raw any) any { return strings.TrimSpace(valueString(raw)) }

func (urlType) Format(value any) string { return valueString(value) }

func (urlType) Contract() Contract { return Contract{Widget: "url"} }

// --- true_false ---

type trueFalseType struct{}

func (trueFalseType) Name() string { return "true_false" }

func (trueFalseType) Defaults() types.Config {
	return types.Config{"required": false, "default_value": false, "message": ""}
}

func (trueFalseType) Validate(value any, cfg types.Config) error {
	return requireCheck(value, cfg)
}

func (trueFalseType) Sanitize(raw any) any {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return v == "1" || v == "true" || v == "yes"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func (trueFalseType) Format(value any) string {
	if b, ok := value.(bool); ok && b {
		return "Yes"
	}
	return "No"
}

func (trueFalseType) Contract() Contract { return Contract{Widget: "toggle"} }

// --- select ---

type selectType struct{}

func (selectType) Name() string { return "select" }

func (selectType) Defaults() types.Config {
	return types.Config{
		"required":      false,
		"default_value": "",
		"choices":       map[string]any{},
		"multiple":      false,
		"allow_null":    true,
	}
}

func (selectType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	choices := cfg.Map("choices")
	if len(choices) == 0 || isEmptyValue(value) {
		// A select with no declared choices accepts anything; the
		// operator is still building the field.
		return nil
	}
	check := func(v any) error {
		if _, ok := choices[valueString(v)]; !ok {
			return fmt.Errorf("%q is not one of the configured choices", valueString(v))
		}
		return nil
	}
	if list, ok := value.([]any); ok {
		for _, v := range list {
			if err := check(v); err != nil {
				return err
			}
		}
		return nil
	}
	return check(value)
}

func (selectType) Sanitize(raw any) any {
	if list, ok := raw.([]any); ok {
		out := make([]any, len(list))
		for i, v := range list {
			out[i] = strings.TrimSpace(valueString(v))
		}
		return out
	}
	return strings.TrimSpace(valueString(raw))
}

func (selectType) Format(value any) string {
	if list, ok := value.([]any); ok {
		parts := make([]string, len(list))
		for i, v := range list {
			parts[i] = valueString(v)
		}
		return strings.Join(parts, ", ")
	}
	return valueString(value)
}

func (selectType) Contract() Contract { return Contract{Widget: "choice"} }

// --- image ---

type imageType struct{}

func (imageType) Name() string { return "image" }

func (imageType) Defaults() types.Config {
	return types.Config{"required": false, "return_format": "id", "preview_size": "medium"}
}

func (imageType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	if isEmptyValue(value) {
		return nil
	}
	// Stored form is a numeric attachment reference into the host system.
	if _, err := strconv.ParseInt(valueString(value), 10, 64); err != nil {
		return fmt.Errorf("%q is not a valid attachment reference", valueString(value))
	}
	return nil
}

func (imageType) Sanitize(raw any) any {
	s := strings.TrimSpace(valueString(raw))
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(n)
	}
	return s
}

func (imageType) Format(value any) string { return valueString(value) }

func (imageType) Contract() Contract { return Contract{Widget: "media"} }

// --- date ---

type dateType struct{}

func (dateType) Name() string { return "date" }

func (dateType) Defaults() types.Config {
	return types.Config{
		"required":       false,
		"display_format": "2006-01-02",
		"return_format":  "2006-01-02",
	}
}

func (dateType) Validate(value any, cfg types.Config) error {
	if err := requireCheck(value, cfg); err != nil {
		return err
	}
	s := valueString(value)
	if s == "" {
		return nil
	}
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return fmt.Errorf("%q is not a date in YYYY-MM-DD form", s)
	}
	return nil
}

func (dateType) Sanitize(raw any) any { return strings.TrimSpace(valueString(raw)) }

func (dateType) Format(value any) string { return valueString(value) }

func (dateType) Contract() Contract { return Contract{Widget: "date"} }

// --- composites ---

type groupType struct{}

func (groupType) Name() string { return types.TypeGroup }

func (groupType) Defaults() types.Config {
	return types.Config{"sub_fields": []any{}, "layout": "block"}
}

func (groupType) Validate(value any, cfg types.Config) error {
	if isEmptyValue(value) {
		return nil
	}
	if _, ok := value.(map[string]any); !ok {
		return fmt.Errorf("a group value must be an object of sub-field values")
	}
	return nil
}

func (groupType) Sanitize(raw any) any { return raw }

func (groupType) Format(value any) string { return valueString(value) }

func (groupType) Contract() Contract { return Contract{Widget: "group"} }

type repeaterType struct{}

func (repeaterType) Name() string { return types.TypeRepeater }

func (repeaterType) Defaults() types.Config {
	return types.Config{
		"sub_fields":   []any{},
		"min_rows":     float64(0),
		"max_rows":     float64(0),
		"button_label": "Add Row",
	}
}

func (repeaterType) Validate(value any, cfg types.Config) error {
	if isEmptyValue(value) {
		if min := int(cfg.Float("min_rows")); min > 0 {
			return fmt.Errorf("at least %d rows are required", min)
		}
		return nil
	}
	rows, ok := value.([]any)
	if !ok {
		return fmt.Errorf("a repeater value must be a list of rows")
	}
	if min := int(cfg.Float("min_rows")); min > 0 && len(rows) < min {
		return fmt.Errorf("at least %d rows are required", min)
	}
	if max := int(cfg.Float("max_rows")); max > 0 && len(rows) > max {
		return fmt.Errorf("at most %d rows are allowed", max)
	}
	return nil
}

func (repeaterType) Sanitize(raw any) any { return raw }

func (repeaterType) Format(value any) string {
	if rows, ok := value.([]any); ok {
		return fmt.Sprintf("%d rows", len(rows))
	}
	return valueString(value)
}

func (repeaterType) Contract() Contract { return Contract{Widget: "rows"} }

type flexibleContentType struct{}

func (flexibleContentType) Name() string { return types.TypeFlexibleContent }

func (flexibleContentType) Defaults() types.Config {
	return types.Config{"layouts": []any{}, "button_label": "Add Section"}
}

func (flexibleContentType) Validate(value any, cfg types.Config) error {
	if isEmptyValue(value) {
		return nil
	}
	sections, ok := value.([]any)
	if !ok {
		return fmt.Errorf("a flexible content value must be a list of sections")
	}
	for i, s := range sections {
		section, ok := s.(map[string]any)
		if !ok {
			return fmt.Errorf("section %d is not an object", i)
		}
		if _, ok := section["layout"].(string); !ok {
			return fmt.Errorf("section %d is missing its layout name", i)
		}
	}
	return nil
}

func (flexibleContentType) Sanitize(raw any) any { return raw }

func (flexibleContentType) Format(value any) string {
	if sections, ok := value.([]any); ok {
		return fmt.Sprintf("%d sections", len(sections))
	}
	return valueString(value)
}

func (flexibleContentType) Contract() Contract { return Contract{Widget: "sections"} }
