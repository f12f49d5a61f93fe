// Package validate holds the account policies and the typed coercions used on
// request parameters.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/picklepals/picklepals/internal/auth"
)

const (
	UsernameMinLen = 5
	UsernameMaxLen = 25
	PasswordMinLen = 10
	PasswordMaxLen = 50

	punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

var commonPasswords = map[string]bool{
	"password123":    true,
	"123password123": true,
	"password1234":   true,
	"1234567890":     true,
	"0123456789":     true,
	"qwertyuiop":     true,
	"qwerty12345":    true,
	"iloveyou123":    true,
	"letmein1234":    true,
	"picklepals1":    true,
	"password!1":     true,
	"p@ssw0rd123":    true,
	"passw0rd!!":     true,
	"welcome123!":    true,
	"admin12345!":    true,
}

// Error is a failed policy check.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CoercionError reports a value that could not be converted to the target type.
type CoercionError struct {
	Field  string
	Value  any
	Target string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("%s: cannot convert %v to %s", e.Field, e.Value, e.Target)
}

// Username checks the display name policy.
func Username(name string) error {
	if len(name) < UsernameMinLen || len(name) > UsernameMaxLen {
		return &Error{Field: "username", Reason: fmt.Sprintf("must be %d-%d characters", UsernameMinLen, UsernameMaxLen)}
	}
	if auth.IsReservedName(name) {
		return &Error{Field: "username", Reason: "name is reserved"}
	}
	for i := 0; i < len(name); i++ {
		if name[i] <= ' ' || name[i] > '~' {
			return &Error{Field: "username", Reason: "must be printable ASCII without spaces"}
		}
	}
	return nil
}

// Password checks the password policy.
func Password(password string) error {
	if len(password) < PasswordMinLen || len(password) > PasswordMaxLen {
		return &Error{Field: "password", Reason: fmt.Sprintf("must be %d-%d characters", PasswordMinLen, PasswordMaxLen)}
	}
	if commonPasswords[strings.ToLower(password)] {
		return &Error{Field: "password", Reason: "password is too common"}
	}

	var digit, upper, lower, punct bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c < ' ' || c > '~':
			return &Error{Field: "password", Reason: "must be printable ASCII"}
		case c >= '0' && c <= '9':
			digit = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case strings.IndexByte(punctuation, c) >= 0:
			punct = true
		}
	}
	if !digit || !upper || !lower || !punct {
		return &Error{Field: "password", Reason: "must contain a digit, an uppercase letter, a lowercase letter and a punctuation character"}
	}
	return nil
}

// Int converts a decoded JSON value to int64. Strings, json.Number and
// integral floats are accepted.
func Int(field string, v any) (int64, error) {
	fail := &CoercionError{Field: field, Value: v, Target: "int"}
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case json.Number:
		n, err := strconv.ParseInt(string(x), 10, 64)
		if err != nil {
			return 0, fail
		}
		return n, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x >= math.MaxInt64 || x < math.MinInt64 {
			return 0, fail
		}
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fail
		}
		return n, nil
	default:
		return 0, fail
	}
}

// Float converts a decoded JSON value to float64.
func Float(field string, v any) (float64, error) {
	fail := &CoercionError{Field: field, Value: v, Target: "float"}
	var f float64
	switch x := v.(type) {
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case float64:
		f = x
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, fail
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fail
		}
		f = n
	default:
		return 0, fail
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail
	}
	return f, nil
}

// String requires v to be a JSON string.
func String(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &CoercionError{Field: field, Value: v, Target: "string"}
	}
	return s, nil
}
