package fetch

import (
	"bytes"
	"encoding/json"
	"strings"
)

var htmlPrefixes = []string{"<!doctype", "<html"}

// Decode unmarshals the response body into dest. It reports false, leaving
// dest untouched, when the body is empty, an HTML error page, a plain-text
// throttle notice, or otherwise not valid JSON.
func Decode(resp *Response, dest interface{}) bool {
	if resp == nil {
		return false
	}
	body := bytes.TrimSpace(resp.Body)
	if !decodable(body) {
		return false
	}
	if !json.Valid(body) {
		return false
	}
	return json.Unmarshal(body, dest) == nil
}

// DecodeOr returns the decoded body or def when decoding is not possible.
func DecodeOr[T any](resp *Response, def T) T {
	var out T
	if !Decode(resp, &out) {
		return def
	}
	return out
}

// Records extracts the first non-empty array found under keys. A bare JSON
// array body is returned as is. The result is never nil.
func Records(resp *Response, keys ...string) []map[string]interface{} {
	var list []map[string]interface{}
	if Decode(resp, &list) {
		return nonNil(list)
	}

	var envelope map[string]json.RawMessage
	if !Decode(resp, &envelope) {
		return []map[string]interface{}{}
	}
	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		var rows []map[string]interface{}
		if err := json.Unmarshal(raw, &rows); err == nil && len(rows) > 0 {
			return rows
		}
	}
	return []map[string]interface{}{}
}

func decodable(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), 32)]))
	for _, prefix := range htmlPrefixes {
		if strings.HasPrefix(head, prefix) {
			return false
		}
	}
	for _, marker := range rateLimitMarkers {
		if strings.HasPrefix(head, marker) {
			return false
		}
	}
	return true
}

func nonNil(rows []map[string]interface{}) []map[string]interface{} {
	if rows == nil {
		return []map[string]interface{}{}
	}
	return rows
}
