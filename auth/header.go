package auth

import "strings"

// TokenFromHeader extracts the token from an Authorization header value.
// Both the "Bearer <token>" and the legacy "JWT <token>" schemes are accepted.
func TokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	for _, scheme := range []string{"Bearer ", "JWT "} {
		if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
			return strings.TrimSpace(header[len(scheme):])
		}
	}
	return ""
}
