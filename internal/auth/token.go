package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoToken indicates that neither the access-token cookie nor a bearer
// Authorization header carried a token.
var ErrNoToken = errors.New("auth: no bearer token present")

const bearerPrefix = "Bearer "

// ExtractBearerToken locates the caller's access token. The cookie named
// cookieName takes priority; the Authorization header is the fallback. Pure
// over its inputs so it can be tested without any transport framework.
func ExtractBearerToken(headers http.Header, cookies []*http.Cookie, cookieName string) (string, error) {
	for _, cookie := range cookies {
		if cookie == nil || cookie.Name != cookieName {
			continue
		}
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value, nil
		}
	}

	authorization := strings.TrimSpace(headers.Get("Authorization"))
	if strings.HasPrefix(authorization, bearerPrefix) {
		if token := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefix)); token != "" {
			return token, nil
		}
	}

	return "", ErrNoToken
}
