package device

import (
	"fmt"
	"regexp"
	"strconv"
)

// placeholderPattern matches {name} placeholders inside template strings.
var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// RenderPayload builds an outbound command payload from a template and
// caller-supplied parameters.
//
// For an object template, each string value containing both '{' and '}'
// has its placeholders substituted from params and the result is coerced
// int → float → string; every other value passes through unchanged. A
// missing parameter fails the whole render with ErrMissingParam.
//
// A non-object template is returned as-is; the caller is expected to have
// logged the oddity (see Registry.ResolveCommand). Rendering is pure:
// identical (template, params) inputs always produce identical output.
func RenderPayload(template any, params map[string]any) (any, error) {
	tmpl, ok := template.(map[string]any)
	if !ok {
		return template, nil
	}

	payload := make(map[string]any, len(tmpl))
	for key, value := range tmpl {
		s, isString := value.(string)
		if !isString || !containsPlaceholder(s) {
			payload[key] = value
			continue
		}

		rendered, err := substitute(s, params)
		if err != nil {
			return nil, err
		}
		payload[key] = coerce(rendered)
	}

	return payload, nil
}

// containsPlaceholder reports whether a template string carries both
// brace characters. Strings without braces pass through uncoerced.
func containsPlaceholder(s string) bool {
	open, close := false, false
	for _, r := range s {
		switch r {
		case '{':
			open = true
		case '}':
			close = true
		}
	}
	return open && close
}

// substitute replaces every {name} in s with the string form of
// params[name]. The first missing name aborts the substitution.
func substitute(s string, params map[string]any) (string, error) {
	missing := ""
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return match
		}
		return formatParam(value)
	})
	if missing != "" {
		return "", fmt.Errorf("%w: %q", ErrMissingParam, missing)
	}
	return out, nil
}

// coerce turns a substituted string into an int, then a float, else
// leaves it as a string ("22" → 22, "22.5" → 22.5, "cool" → "cool").
func coerce(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// formatParam renders a parameter value into its placeholder slot.
// JSON numbers arrive as float64; integral values print without the
// decimal point so "{t}" with t=22 renders "22", not "22.000000".
func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", val)
	}
}
