// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package workflow

import (
	"strings"

	"github.com/tidwall/gjson"
)

// verdict extracts a string field from a JSON-mode model reply. It accepts
// fenced blocks and surrounding prose, matches the key case-insensitively
// and returns the value lower-cased and trimmed, or "" if absent.
func verdict(content, field string) string {
	raw := jsonObject(content)
	if raw == "" {
		return ""
	}

	v := gjson.Get(raw, gjson.Escape(field))
	if !v.Exists() {
		gjson.Parse(raw).ForEach(func(key, value gjson.Result) bool {
			if strings.EqualFold(strings.TrimSpace(key.String()), field) {
				v = value
				return false
			}
			return true
		})
	}
	return strings.ToLower(strings.TrimSpace(v.String()))
}

// jsonObject returns the first JSON object in s.
func jsonObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	if gjson.Valid(s) && gjson.Parse(s).IsObject() {
		return s
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	if obj := s[start : end+1]; gjson.Valid(obj) {
		return obj
	}
	return ""
}

func yes(v string) bool { return v == "yes" }
