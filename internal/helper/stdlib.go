package helper

import (
	"fmt"
	"strings"
)

// RegisterDefaults registers the standard functional helpers:
//
//	uppercase, lowercase, trim  string case and whitespace
//	default                     first argument, or the second when empty
//	eq, ne                      equality comparison
//	gt, lt                      numeric comparison
//	contains                    substring test
//	join                        join a list with a separator
//	len                         length of a string, list or map
//	concat                      concatenate all arguments
//	words                       join all arguments with single spaces
func RegisterDefaults(r *Registry) error {
	defaults := map[string]Func{
		"uppercase": func(_ *Scope, args Args) (any, error) {
			return strings.ToUpper(str(args.Positional.At(0))), nil
		},
		"lowercase": func(_ *Scope, args Args) (any, error) {
			return strings.ToLower(str(args.Positional.At(0))), nil
		},
		"trim": func(_ *Scope, args Args) (any, error) {
			return strings.TrimSpace(str(args.Positional.At(0))), nil
		},
		"default": func(_ *Scope, args Args) (any, error) {
			v := args.Positional.At(0)
			if v == nil || v == "" {
				return args.Positional.At(1), nil
			}
			return v, nil
		},
		"eq": func(_ *Scope, args Args) (any, error) {
			return args.Positional.At(0) == args.Positional.At(1), nil
		},
		"ne": func(_ *Scope, args Args) (any, error) {
			return args.Positional.At(0) != args.Positional.At(1), nil
		},
		"gt": func(_ *Scope, args Args) (any, error) {
			a, b, err := numbers(args)
			if err != nil {
				return nil, err
			}
			return a > b, nil
		},
		"lt": func(_ *Scope, args Args) (any, error) {
			a, b, err := numbers(args)
			if err != nil {
				return nil, err
			}
			return a < b, nil
		},
		"contains": func(_ *Scope, args Args) (any, error) {
			return strings.Contains(str(args.Positional.At(0)), str(args.Positional.At(1))), nil
		},
		"join": func(_ *Scope, args Args) (any, error) {
			var items []any
			switch v := args.Positional.At(0).(type) {
			case []any:
				items = v
			case []string:
				for _, s := range v {
					items = append(items, s)
				}
			case nil:
			default:
				return nil, fmt.Errorf("join: expected a list, got %T", v)
			}
			strs := make([]string, len(items))
			for i, v := range items {
				strs[i] = str(v)
			}
			return strings.Join(strs, str(args.Positional.At(1))), nil
		},
		"len": func(_ *Scope, args Args) (any, error) {
			switch v := args.Positional.At(0).(type) {
			case string:
				return len(v), nil
			case []any:
				return len(v), nil
			case map[string]any:
				return len(v), nil
			default:
				return 0, nil
			}
		},
		"concat": func(_ *Scope, args Args) (any, error) {
			var b strings.Builder
			for _, v := range args.Positional.Values() {
				b.WriteString(str(v))
			}
			return b.String(), nil
		},
		"words": func(_ *Scope, args Args) (any, error) {
			parts := make([]string, 0, args.Positional.Len())
			for _, v := range args.Positional.Values() {
				parts = append(parts, str(v))
			}
			return strings.Join(parts, " "), nil
		},
	}

	for name, fn := range defaults {
		if err := r.Register(name, Functional(fn)); err != nil {
			return err
		}
	}
	return nil
}

func str(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func numbers(args Args) (float64, float64, error) {
	a, err := toFloat(args.Positional.At(0))
	if err != nil {
		return 0, 0, err
	}
	b, err := toFloat(args.Positional.At(1))
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
