package client

import (
	"fmt"
	"strconv"
)

// Diff actions used by sse_v2 generator outputs.
const (
	diffReplace = "replace"
	diffAppend  = "append"
	diffAdd     = "add"
	diffDelete  = "delete"
)

// applyDiff applies a list of [action, path, value] edits to target and
// returns the updated value. Containers in target are modified in place.
func applyDiff(target any, diff any) (any, error) {
	ops, ok := diff.([]any)
	if !ok {
		return nil, fmt.Errorf("diff is %T, not a list", diff)
	}
	for _, op := range ops {
		parts, ok := op.([]any)
		if !ok || len(parts) != 3 {
			return nil, fmt.Errorf("malformed diff entry %v", op)
		}
		action, ok := parts[0].(string)
		if !ok {
			return nil, fmt.Errorf("diff action is %T, not a string", parts[0])
		}
		var path []any
		if parts[1] != nil {
			if path, ok = parts[1].([]any); !ok {
				return nil, fmt.Errorf("diff path is %T, not a list", parts[1])
			}
		}
		var err error
		if target, err = applyEdit(target, path, action, parts[2]); err != nil {
			return nil, err
		}
	}
	return target, nil
}

func applyEdit(target any, path []any, action string, value any) (any, error) {
	if len(path) == 0 {
		switch action {
		case diffReplace:
			return value, nil
		case diffAppend:
			return appendValue(target, value)
		}
		return nil, fmt.Errorf("unsupported diff action %q at root", action)
	}

	switch t := target.(type) {
	case []any:
		i, err := diffIndex(path[0])
		if err != nil {
			return nil, err
		}
		if len(path) == 1 {
			return editSlice(t, i, action, value)
		}
		if i < 0 || i >= len(t) {
			return nil, fmt.Errorf("diff index %d out of range", i)
		}
		child, err := applyEdit(t[i], path[1:], action, value)
		if err != nil {
			return nil, err
		}
		t[i] = child
		return t, nil

	case map[string]any:
		key := fmt.Sprint(path[0])
		if len(path) == 1 {
			return editMap(t, key, action, value)
		}
		child, err := applyEdit(t[key], path[1:], action, value)
		if err != nil {
			return nil, err
		}
		t[key] = child
		return t, nil
	}
	return nil, fmt.Errorf("cannot follow diff path into %T", target)
}

func editSlice(s []any, i int, action string, value any) (any, error) {
	switch action {
	case diffReplace, diffAppend, diffDelete:
		if i < 0 || i >= len(s) {
			return nil, fmt.Errorf("diff index %d out of range", i)
		}
	case diffAdd:
		if i < 0 || i > len(s) {
			return nil, fmt.Errorf("diff index %d out of range", i)
		}
	}

	switch action {
	case diffReplace:
		s[i] = value
	case diffAppend:
		v, err := appendValue(s[i], value)
		if err != nil {
			return nil, err
		}
		s[i] = v
	case diffAdd:
		s = append(s, nil)
		copy(s[i+1:], s[i:])
		s[i] = value
	case diffDelete:
		s = append(s[:i], s[i+1:]...)
	default:
		return nil, fmt.Errorf("unsupported diff action %q", action)
	}
	return s, nil
}

func editMap(m map[string]any, key, action string, value any) (any, error) {
	switch action {
	case diffReplace, diffAdd:
		m[key] = value
	case diffAppend:
		v, err := appendValue(m[key], value)
		if err != nil {
			return nil, err
		}
		m[key] = v
	case diffDelete:
		delete(m, key)
	default:
		return nil, fmt.Errorf("unsupported diff action %q", action)
	}
	return m, nil
}

func appendValue(target, value any) (any, error) {
	switch t := target.(type) {
	case string:
		if v, ok := value.(string); ok {
			return t + v, nil
		}
	case nil:
		return value, nil
	case float64:
		if v, ok := value.(float64); ok {
			return t + v, nil
		}
	case []any:
		if v, ok := value.([]any); ok {
			return append(t, v...), nil
		}
		return append(t, value), nil
	}
	return nil, fmt.Errorf("cannot append %T to %T", value, target)
}

func diffIndex(key any) (int, error) {
	switch k := key.(type) {
	case float64:
		return int(k), nil
	case int:
		return k, nil
	case string:
		i, err := strconv.Atoi(k)
		if err != nil {
			return 0, fmt.Errorf("diff key %q is not an index", k)
		}
		return i, nil
	}
	return 0, fmt.Errorf("diff key %v is not an index", key)
}

// cloneList deep-copies decoded JSON so later diffs do not mutate
// values already handed to listeners.
func cloneList(in []any) []any {
	if in == nil {
		return nil
	}
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		return cloneList(t)
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	}
	return v
}
