package common

import "strings"

// ParseBearer extracts the token from an "Authorization: Bearer <token>" value.
// The scheme is matched case-insensitively; anything else is rejected.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
