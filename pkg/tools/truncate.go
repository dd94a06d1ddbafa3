package tools

import (
	"encoding/json"
	"unicode/utf8"
)

// truncateResultList drops lowest-ranked items from a search-result list
// and records how many were dropped. items is assumed already ranked
// best-first.
func truncateResultList(items []any, maxItems int) ([]any, int) {
	if maxItems <= 0 || len(items) <= maxItems {
		return items, 0
	}
	omitted := len(items) - maxItems
	return items[:maxItems], omitted
}

// withOmitted appends an explicit omitted field so the LLM knows the
// extent of truncation.
func withOmitted(items []any, omitted int) map[string]any {
	out := map[string]any{"results": items}
	if omitted > 0 {
		out["omitted"] = omitted
	}
	return out
}

// truncateEntityProperties drops free-form properties before core fields
// when an entity payload is oversize; id, canonical_name, kind, and
// summary are always preserved.
func truncateEntityProperties(entity map[string]any, maxBytes int) map[string]any {
	if sizeOf(entity) <= maxBytes {
		return entity
	}
	core := map[string]any{}
	for _, key := range []string{"id", "canonical_name", "kind", "summary"} {
		if v, ok := entity[key]; ok {
			core[key] = v
		}
	}
	core["properties_truncated"] = true
	return core
}

// truncateBytes is the last-resort size guard for a serialized tool result
// that is still oversize after list/property truncation (or bypassed it
// entirely, e.g. a single large claim). It never returns raw[:maxBytes]
// directly: slicing marshaled JSON at an arbitrary byte offset produces
// invalid, mid-token JSON. Instead it wraps a UTF-8-safe prefix of raw in a
// fresh JSON object with an explicit truncated/omitted_bytes marker, so the
// result handed to the LLM always parses.
func truncateBytes(raw []byte, maxBytes int) string {
	if maxBytes <= 0 || len(raw) <= maxBytes {
		return string(raw)
	}
	preview := utf8SafePrefix(raw, maxBytes)
	out, err := json.Marshal(map[string]any{
		"truncated":     true,
		"omitted_bytes": len(raw) - len(preview),
		"preview":       string(preview),
	})
	if err != nil {
		return `{"truncated":true,"preview":""}`
	}
	return string(out)
}

// utf8SafePrefix returns the longest prefix of raw no longer than maxBytes
// that ends on a rune boundary, so it round-trips through json.Marshal as a
// valid UTF-8 string instead of splitting a multi-byte rune in half.
func utf8SafePrefix(raw []byte, maxBytes int) []byte {
	n := maxBytes
	if n > len(raw) {
		n = len(raw)
	}
	for n > 0 && n < len(raw) && !utf8.RuneStart(raw[n]) {
		n--
	}
	return raw[:n]
}

func sizeOf(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(raw)
}
