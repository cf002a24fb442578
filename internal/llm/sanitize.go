package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

var reFence = regexp.MustCompile("(?s)^```(?:json)?\\s*|\\s*```$")

// StripCodeFences removes a markdown code fence the model may have wrapped
// around its JSON answer.
func StripCodeFences(s string) string {
	return strings.TrimSpace(reFence.ReplaceAllString(strings.TrimSpace(s), ""))
}

// NormalizeAndSanitizeJSON
// - Removes unknown keys at every level (strict additionalProperties friendliness)
// - Trims strings; empty scalar strings become null (absent)
// - Drops null list fields and non-string list elements
// - Coerces a bare string where a list was expected into a one-element list
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	keepObject := func(key string, fields []string) {
		v, ok := m[key]
		if !ok {
			return
		}
		obj, ok := v.(map[string]any)
		if !ok {
			delete(m, key)
			dropped = append(dropped, key+"(type)")
			return
		}
		allowed := make(map[string]struct{}, len(fields))
		for _, f := range fields {
			allowed[f] = struct{}{}
		}
		for k, fv := range obj {
			if _, ok := allowed[k]; !ok {
				delete(obj, k)
				dropped = append(dropped, key+"."+k+"(unknown)")
				continue
			}
			switch t := fv.(type) {
			case string:
				s := strings.TrimSpace(t)
				if s == "" {
					obj[k] = nil
					dropped = append(dropped, key+"."+k+"(empty)")
				} else {
					obj[k] = s
				}
			case nil:
				// fine, explicit "not found"
			default:
				obj[k] = nil
				dropped = append(dropped, key+"."+k+"(type)")
			}
		}
	}

	keepList := func(key string) {
		v, ok := m[key]
		if !ok {
			return
		}
		switch t := v.(type) {
		case nil:
			delete(m, key)
			dropped = append(dropped, key+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, key)
				dropped = append(dropped, key+"(empty)")
			} else {
				m[key] = []any{s}
				dropped = append(dropped, key+"(wrapped)")
			}
		case []any:
			out := make([]any, 0, len(t))
			for _, el := range t {
				if s, ok := el.(string); ok {
					if s = strings.TrimSpace(s); s != "" {
						out = append(out, s)
						continue
					}
				}
				dropped = append(dropped, key+"[](element)")
			}
			m[key] = out
		default:
			delete(m, key)
			dropped = append(dropped, key+"(type)")
		}
	}

	allowedTop := map[string]struct{}{
		"dadesAlumne": {}, "motiu": {}, "adaptacionsGenerals": {}, "orientacions": {},
	}
	for k := range m {
		if _, ok := allowedTop[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	keepObject("dadesAlumne", []string{"nomCognoms", "dataNaixement", "curs"})
	keepObject("motiu", []string{"diagnostic"})
	keepList("adaptacionsGenerals")
	keepList("orientacions")

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}
