package api

import (
	"strings"

	"github.com/picklepals/picklepals/internal/validate"
)

// SenderKey is the parameter the dispatcher sets to the authenticated actor id.
// Any client-supplied value is discarded.
const SenderKey = "sender_id"

// Params are the decoded JSON body of a request.
type Params map[string]any

func (p Params) has(key string) bool {
	v, ok := p[key]
	return ok && v != nil
}

func (p Params) get(key string) (any, error) {
	if !p.has(key) {
		return nil, BadRequest("missing parameter %q", key)
	}
	return p[key], nil
}

// Int returns a required integer parameter.
func (p Params) Int(key string) (int64, error) {
	v, err := p.get(key)
	if err != nil {
		return 0, err
	}
	return validate.Int(key, v)
}

// OptionalInt returns an integer parameter or def when absent.
func (p Params) OptionalInt(key string, def int64) (int64, error) {
	if !p.has(key) {
		return def, nil
	}
	return validate.Int(key, p[key])
}

// Float returns a required float parameter.
func (p Params) Float(key string) (float64, error) {
	v, err := p.get(key)
	if err != nil {
		return 0, err
	}
	return validate.Float(key, v)
}

// String returns a required, non-empty string parameter.
func (p Params) String(key string) (string, error) {
	v, err := p.get(key)
	if err != nil {
		return "", err
	}
	s, err := validate.String(key, v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", BadRequest("missing parameter %q", key)
	}
	return s, nil
}

// OptionalString returns a string parameter or def when absent.
func (p Params) OptionalString(key, def string) (string, error) {
	if !p.has(key) {
		return def, nil
	}
	return validate.String(key, p[key])
}

// IntList accepts either a single integer or a JSON array of integers.
func (p Params) IntList(key string) ([]int64, error) {
	v, err := p.get(key)
	if err != nil {
		return nil, err
	}
	items, ok := v.([]any)
	if !ok {
		n, err := validate.Int(key, v)
		if err != nil {
			return nil, err
		}
		return []int64{n}, nil
	}
	if len(items) == 0 {
		return nil, BadRequest("parameter %q must not be empty", key)
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		n, err := validate.Int(key, item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// StringList accepts a JSON array of strings or a comma separated string.
// ok is false when the parameter is absent.
func (p Params) StringList(key string) (list []string, ok bool, err error) {
	if !p.has(key) {
		return nil, false, nil
	}
	switch v := p[key].(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				list = append(list, part)
			}
		}
	case []any:
		for _, item := range v {
			s, err := validate.String(key, item)
			if err != nil {
				return nil, true, err
			}
			list = append(list, s)
		}
	default:
		return nil, true, &validate.CoercionError{Field: key, Value: v, Target: "list of strings"}
	}
	return list, true, nil
}

// Sender returns the actor id injected by the dispatcher.
func (p Params) Sender() (int64, bool) {
	id, ok := p[SenderKey].(int64)
	return id, ok
}
