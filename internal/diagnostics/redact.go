package diagnostics

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Redacted значение, которым заменяются секреты.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]struct{}{
	"access_token":  {},
	"refresh_token": {},
	"token":         {},
	"secret":        {},
	"password":      {},
	"authorization": {},
}

// sensitivePair находит пары "ключ": "значение" с секретами в теле, которое не разбирается как JSON.
var sensitivePair = regexp.MustCompile(`(?i)("(?:access_token|refresh_token|token|secret|password|authorization)"\s*:\s*)"(?:[^"\\]|\\.)*"?`)

// Redact возвращает тело вебхука с замаскированными токенами и секретами на любой глубине.
// Тело без секретов возвращается без изменений.
func Redact(body []byte) string {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return sensitivePair.ReplaceAllString(string(body), `${1}"`+Redacted+`"`)
	}
	if !redactValue(v) {
		return string(body)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return Redacted
	}
	return string(out)
}

func redactValue(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if _, ok := sensitiveKeys[strings.ToLower(k)]; ok {
				t[k] = Redacted
				changed = true
				continue
			}
			if redactValue(val) {
				changed = true
			}
		}
	case []any:
		for _, val := range t {
			if redactValue(val) {
				changed = true
			}
		}
	}
	return changed
}
