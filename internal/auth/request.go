package auth

import (
	"errors"
	"net/http"
	"strings"
)

// BearerToken returns the token of an "Authorization: Bearer <token>" header,
// or "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// HTTPStatus maps a Verify error to a response status: 401 for credential
// rejections, 503 for anything else.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrUnknownIdentity):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}
