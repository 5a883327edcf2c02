// Package property parses the "key=value" configuration tokens accepted by
// layers and optimizers.
package property

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformed is returned for tokens that are not "key=value" or whose
// value cannot be parsed as the requested type.
var ErrMalformed = errors.New("malformed property")

// Property is one parsed configuration token.
type Property struct {
	Key   string
	Value string
}

// Parse splits a "key=value" token. Keys are lower-cased and both sides
// are trimmed.
func Parse(token string) (Property, error) {
	key, value, ok := strings.Cut(token, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return Property{}, errors.Wrapf(ErrMalformed, "%q is not key=value", token)
	}
	return Property{Key: key, Value: value}, nil
}

// ParseAll parses every token, stopping at the first malformed one.
func ParseAll(tokens []string) ([]Property, error) {
	props := make([]Property, 0, len(tokens))
	for _, token := range tokens {
		p, err := Parse(token)
		if err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, nil
}

// Float32 parses the value as a float32.
func (p Property) Float32() (float32, error) {
	v, err := strconv.ParseFloat(p.Value, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "%s=%q: not a number", p.Key, p.Value)
	}
	return float32(v), nil
}

// PositiveInt parses the value as an integer greater than zero.
func (p Property) PositiveInt() (int, error) {
	v, err := strconv.Atoi(p.Value)
	if err != nil || v <= 0 {
		return 0, errors.Wrapf(ErrMalformed, "%s=%q: not a positive integer", p.Key, p.Value)
	}
	return v, nil
}

// Bool parses the value as a boolean ("true", "false", "1", "0", ...).
func (p Property) Bool() (bool, error) {
	v, err := strconv.ParseBool(p.Value)
	if err != nil {
		return false, errors.Wrapf(ErrMalformed, "%s=%q: not a boolean", p.Key, p.Value)
	}
	return v, nil
}

// String returns the token form "key=value".
func (p Property) String() string {
	return p.Key + "=" + p.Value
}
