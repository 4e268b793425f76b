// Package logging builds the process logger and keeps credentials out of log output.
package logging

import (
	"regexp"
	"strings"
)

// SensitiveFields contains attribute keys whose values are masked in logs.
// Keys containing any of these as a substring are masked as well.
var SensitiveFields = map[string]bool{
	"password":          true,
	"passwd":            true,
	"secret":            true,
	"token":             true,
	"api_key":           true,
	"apikey":            true,
	"access_key":        true,
	"access_key_id":     true,
	"secret_access_key": true,
	"session_token":     true,
	"private_key":       true,
	"credentials":       true,
	"authorization":     true,
	"bearer":            true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// IsSensitiveField checks if an attribute key is sensitive.
func IsSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)

	if SensitiveFields[lowerField] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}

	return false
}

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(fieldName) {
		return MaskedValue
	}
	return value
}

// MaskString masks a portion of a sensitive string, showing only first/last chars.
func MaskString(s string, showFirst, showLast int) string {
	if s == "" {
		return s
	}

	length := len(s)

	// If string is too short, mask completely
	if length <= showFirst+showLast+3 {
		return MaskedValue
	}

	return s[:showFirst] + "***" + s[length-showLast:]
}

// SensitivePatterns matches credentials embedded in free text such as error
// messages or connection strings.
var SensitivePatterns = []*regexp.Regexp{
	// key=value secrets
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)['":\s]*[=:]\s*['"]?([a-zA-Z0-9_\-\.]+)['"]?`),
	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`),
	// AWS access key ids
	regexp.MustCompile(`(AKIA|ABIA|ACCA|ASIA)[A-Z0-9]{16}`),
	// Credentials in URLs, e.g. redis://:pass@host
	regexp.MustCompile(`(?i)([a-z][a-z0-9+.-]*://)[^/\s:@]*:[^/\s@]+@`),
}

// MaskSensitivePatterns masks sensitive patterns in a raw string.
func MaskSensitivePatterns(s string) string {
	result := s
	for _, pattern := range SensitivePatterns {
		result = pattern.ReplaceAllString(result, MaskedValue)
	}
	return result
}
