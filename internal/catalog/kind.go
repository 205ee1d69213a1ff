package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is the value type of a flag. The set is closed; every switch over
// Kind handles all five cases.
type Kind int

const (
	KindText Kind = iota
	KindSecret
	KindNumber
	KindBoolean
	KindSelect
)

var kindNames = map[Kind]string{
	KindText:    "text",
	KindSecret:  "secret",
	KindNumber:  "number",
	KindBoolean: "boolean",
	KindSelect:  "select",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown flag kind %q", s)
}

// UnmarshalYAML decodes a kind name.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*k = parsed
	return nil
}

// MarshalYAML encodes the kind name.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// MarshalText encodes the kind name for JSON.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Format renders name/value as a compile definition. The second result is
// false when nothing should be emitted (a boolean that is not true).
// Strings are wrapped as '"value"' so PlatformIO passes a C string literal.
func (k Kind) Format(name, value string) (string, bool) {
	switch k {
	case KindText, KindSecret:
		return fmt.Sprintf(`%s='"%s"'`, name, value), true
	case KindBoolean:
		if IsTrue(value) {
			return name + "=1", true
		}
		return "", false
	case KindNumber, KindSelect:
		return name + "=" + value, true
	}
	return "", false
}

// Validate checks a non-empty value against the definition's rules.
func (k Kind) Validate(def FlagDef, value string) error {
	switch k {
	case KindText, KindSecret:
		if strings.ContainsAny(value, "\"'\n\r") {
			return fmt.Errorf("%s: quotes and line breaks are not allowed", def.Key)
		}
		return nil
	case KindNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", def.Key, value)
		}
		if def.Min != nil && n < *def.Min {
			return fmt.Errorf("%s: %v is below minimum %v", def.Key, n, *def.Min)
		}
		if def.Max != nil && n > *def.Max {
			return fmt.Errorf("%s: %v is above maximum %v", def.Key, n, *def.Max)
		}
		return nil
	case KindBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s: %q is not a boolean", def.Key, value)
		}
		return nil
	case KindSelect:
		for _, opt := range def.Options {
			if opt == value {
				return nil
			}
		}
		return fmt.Errorf("%s: %q is not one of %s", def.Key, value, strings.Join(def.Options, ", "))
	}
	return fmt.Errorf("%s: unsupported kind %s", def.Key, k)
}

// IsTrue reports whether a boolean flag value is set.
func IsTrue(value string) bool {
	b, err := strconv.ParseBool(value)
	return err == nil && b
}
