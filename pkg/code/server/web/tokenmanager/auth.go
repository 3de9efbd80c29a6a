package tokenmanager

import (
	"crypto/ed25519"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	authorizationHeaderName = "authorization"
	bearerPrefix            = "Bearer "
)

var (
	errMissingToken = errors.New("bearer token missing")
	errInvalidToken = errors.New("bearer token invalid")
)

// authenticate verifies the request carries an EdDSA signed JWT with an
// expiry, issued by the holder of key.
func authenticate(r *http.Request, key ed25519.PublicKey) error {
	header := r.Header.Get(authorizationHeaderName)
	if !strings.HasPrefix(header, bearerPrefix) {
		return errMissingToken
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(
		strings.TrimPrefix(header, bearerPrefix),
		&claims,
		func(_ *jwt.Token) (interface{}, error) {
			return key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
	)
	if err != nil {
		return errInvalidToken
	}

	// Tokens without an expiry would be valid forever
	if claims.ExpiresAt == nil {
		return errInvalidToken
	}
	return nil
}

func (s *Server) withAuth(path string, next http.HandlerFunc) http.HandlerFunc {
	if s.authKey == nil {
		return next
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if err := authenticate(r, s.authKey); err != nil {
			s.log.WithField("path", path).WithError(err).Debug("unauthenticated request")

			body := NewGenericApiFailureResponseBody(errors.New("authentication failed"))
			w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
			w.WriteHeader(http.StatusUnauthorized)
			if _, err := w.Write([]byte(body.ToString())); err != nil {
				s.log.WithError(err).Warn("failed to write body")
			}
			return
		}

		next(w, r)
	}
}
