package access

import (
	"net/http"
	"strings"
)

// ExtractBearerToken returns the token from an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	val := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(val) < len("Bearer ") || !strings.EqualFold(val[:len("Bearer ")], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(val[len("Bearer "):])
}
