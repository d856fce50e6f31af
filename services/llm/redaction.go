// Copyright (C) 2026 Loupe Authors (oss@loupedev.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"regexp"
)

// redactionPattern pairs a compiled regex with a labeled replacement so
// log readers know what was removed without seeing the value.
//
// Thread Safety: This type is immutable after construction.
type redactionPattern struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// redactionPatterns is the ordered list of secret patterns to redact.
//
// IMPORTANT: Order matters. More specific patterns (e.g. sk-ant-api03-)
// must appear BEFORE less specific ones (e.g. sk-) to prevent partial
// redaction.
//
// Thread Safety: This slice is initialized once and never modified.
var redactionPatterns = []redactionPattern{
	// Anthropic API key: sk-ant-api03-<base62>
	// Must be before the OpenAI pattern because both start with "sk-".
	{
		Pattern:     regexp.MustCompile(`sk-ant-api03-[A-Za-z0-9_-]{20,}`),
		Replacement: "[REDACTED:anthropic_key]",
	},
	// OpenAI API key: sk-<base62, 20+ chars>
	// Requires 20+ chars after "sk-" to avoid matching strings like "sk-test".
	{
		Pattern:     regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
		Replacement: "[REDACTED:openai_key]",
	},
	// Bearer tokens in header dumps.
	{
		Pattern:     regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/-]{16,}=*`),
		Replacement: "[REDACTED:bearer_token]",
	},
	// Generic key=value credential assignments.
	{
		Pattern:     regexp.MustCompile(`(?i)(api[_-]?key|token|password|secret)\s*[=:]\s*['"]?[^\s'"]{8,}['"]?`),
		Replacement: "$1=[REDACTED]",
	},
}

// SafeLogString redacts known secret formats from a string before it is
// logged or wrapped into an error.
//
// Description:
//
//	Every provider error path runs response bodies through this function,
//	so an upstream server echoing a credential back never lands it in the
//	session log verbatim.
//
// Thread Safety: Safe for concurrent use.
func SafeLogString(s string) string {
	for _, rp := range redactionPatterns {
		s = rp.Pattern.ReplaceAllString(s, rp.Replacement)
	}
	return s
}
