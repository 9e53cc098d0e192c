package stacks

import "github.com/oriys/microstack/internal/apierr"

// resolveProperties returns a copy of props with every Ref / Fn::GetAtt
// intrinsic replaced by its resolved value, looked up against resources
// already created earlier in the current pass.
func resolveProperties(props map[string]any, created map[string]*Resource) (map[string]any, error) {
	out := make(map[string]any, len(props))
	for k, v := range props {
		rv, err := resolveValue(v, created)
		if err != nil {
			return nil, err
		}
		out[k] = rv
	}
	return out, nil
}

func resolveValue(v any, created map[string]*Resource) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if len(t) == 1 {
			for k, arg := range t {
				switch k {
				case "Ref":
					id, ok := arg.(string)
					if !ok {
						return nil, apierr.InvalidArgumentf("ValidationError", "Ref requires a string logical id")
					}
					return resolveRef(id, created)
				case "Fn::GetAtt":
					return resolveGetAtt(arg, created)
				}
				if len(k) >= 4 && k[:4] == "Fn::" {
					return nil, apierr.InvalidArgumentf("ValidationError", "unsupported intrinsic %q", k)
				}
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			rv, err := resolveValue(val, created)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			rv, err := resolveValue(val, created)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

func resolveRef(id string, created map[string]*Resource) (string, error) {
	r, ok := created[id]
	if !ok || r.Status != StatusCreateComplete {
		return "", apierr.InvalidArgumentf("ValidationError", "Ref target %q is not CREATE_COMPLETE", id)
	}
	return r.PhysicalID, nil
}

func resolveGetAtt(arg any, created map[string]*Resource) (string, error) {
	var id, attr string
	switch t := arg.(type) {
	case string:
		idx := lastIndexByte(t, '.')
		if idx < 0 {
			return "", apierr.InvalidArgumentf("ValidationError", "Fn::GetAtt string form requires \"logicalId.Attr\"")
		}
		id, attr = t[:idx], t[idx+1:]
	case []any:
		if len(t) != 2 {
			return "", apierr.InvalidArgumentf("ValidationError", "Fn::GetAtt list form requires exactly 2 elements")
		}
		var ok1, ok2 bool
		id, ok1 = t[0].(string)
		attr, ok2 = t[1].(string)
		if !ok1 || !ok2 {
			return "", apierr.InvalidArgumentf("ValidationError", "Fn::GetAtt list form requires two strings")
		}
	default:
		return "", apierr.InvalidArgumentf("ValidationError", "Fn::GetAtt requires a string or a 2-element list")
	}
	if attr != "Arn" {
		return "", apierr.InvalidArgumentf("ValidationError", "unsupported Fn::GetAtt attribute %q", attr)
	}
	r, ok := created[id]
	if !ok || r.Status != StatusCreateComplete {
		return "", apierr.InvalidArgumentf("ValidationError", "Fn::GetAtt target %q is not CREATE_COMPLETE", id)
	}
	return arnFor(r), nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
