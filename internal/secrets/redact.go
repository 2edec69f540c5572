package secrets

const redactedPlaceholder = "***"

// sensitiveFields are masked by Redacted wherever they appear in a section.
var sensitiveFields = map[string]struct{}{
	"private_key":       {},
	"private_key_id":    {},
	"password":          {},
	"key":               {},
	"secret_access_key": {},
	"web_api_key":       {},
}

// Redacted returns a copy of s with credential values masked. Structure,
// sources and warnings are preserved.
func Redacted(s *Secrets) *Secrets {
	out := newSecrets()
	for _, k := range s.keys {
		v := cloneValue(s.values[k])
		switch t := v.(type) {
		case Section:
			redactMap(t)
		case string:
			if k == KeyAnthropicAPIKey {
				v = Mask(t)
			}
		}
		out.set(k, v)
	}
	out.sources = s.sources
	out.warnings = s.Warnings()
	out.loadedAt = s.loadedAt
	return out
}

func redactMap(m map[string]any) {
	for k, v := range m {
		switch t := v.(type) {
		case map[string]any:
			redactMap(t)
		case []any:
			redactList(t)
		case string:
			if _, ok := sensitiveFields[k]; ok {
				m[k] = Mask(t)
			}
		}
	}
}

// redactList masks sensitive fields of objects nested at any depth in l.
func redactList(l []any) {
	for _, v := range l {
		switch t := v.(type) {
		case map[string]any:
			redactMap(t)
		case []any:
			redactList(t)
		}
	}
}

// Mask shortens a credential to its first 10 and last 4 characters. Values of
// 14 characters or fewer are replaced entirely. Characters are counted as
// runes so the result stays valid UTF-8.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) <= 14 {
		return redactedPlaceholder
	}
	return string(r[:10]) + "..." + string(r[len(r)-4:])
}
