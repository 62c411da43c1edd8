// Package util holds small helpers for keeping credentials out of logs.
package util

import (
	"net/url"
	"strings"
)

// sensitiveMarkers flag query keys whose values must not reach the logs.
var sensitiveMarkers = []string{"token", "secret", "api-key", "api_key", "apikey", "password"}

// HideAPIKey keeps the first and last few characters of a credential.
func HideAPIKey(apiKey string) string {
	var keep int
	switch n := len(apiKey); {
	case n > 8:
		keep = 4
	case n > 4:
		keep = 2
	case n > 2:
		keep = 1
	default:
		return apiKey
	}
	return apiKey[:keep] + "..." + apiKey[len(apiKey)-keep:]
}

// MaskSensitiveQuery rewrites credential-like values in a raw query string,
// preserving pair order and every other byte.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	masked := false
	for i, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		if !isSensitiveKey(unescape(key)) {
			continue
		}
		pairs[i] = key + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(unescape(value))))
		masked = true
	}
	if !masked {
		return raw
	}
	return strings.Join(pairs, "&")
}

func unescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}
	return s
}

func isSensitiveKey(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" {
		return true
	}
	for _, marker := range sensitiveMarkers {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}
