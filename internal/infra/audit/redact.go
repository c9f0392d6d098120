package audit

import (
	"encoding/json"
	"fmt"
	"strings"
)

var sensitiveKeys = []string{
	"token",
	"secret",
	"authorization",
	"api_key",
	"apikey",
	"password",
	"credential",
	"cookie",
}

// ContainsSensitiveKey reports whether the key should be redacted.
func ContainsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, needle := range sensitiveKeys {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

// RedactValue masks the value if the key is sensitive.
func RedactValue(key, value string) string {
	if ContainsSensitiveKey(key) {
		return "***"
	}
	return value
}

// RedactArgs flattens call arguments into the string form stored on audit
// records, masking values under sensitive keys. Non-string values are
// JSON encoded.
func RedactArgs(args map[string]any) map[string]string {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]string, len(args))
	for key, value := range args {
		if ContainsSensitiveKey(key) {
			out[key] = "***"
			continue
		}
		out[key] = stringifyArg(value)
	}
	return out
}

func stringifyArg(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}
