package crm

// CleanAttributes removes nil values, empty strings and empty nested
// collections recursively. Returns nil when nothing survives so the
// attribute map itself is omitted from the payload.
func CleanAttributes(attrs map[string]any) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		if cleaned, ok := cleanValue(v); ok {
			out[k] = cleaned
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		if val == "" {
			return nil, false
		}
		return val, true
	case map[string]any:
		cleaned := CleanAttributes(val)
		if cleaned == nil {
			return nil, false
		}
		return cleaned, true
	case []any:
		out := make([]any, 0, len(val))
		for _, item := range val {
			if cleaned, ok := cleanValue(item); ok {
				out = append(out, cleaned)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return val, true
	}
}

func cleanStrings(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
