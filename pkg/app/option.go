package app

import (
	"net/http"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const requestIdHeaderName = "x-request-id"

// Middleware wraps an HTTP handler.
type Middleware func(next http.Handler) http.Handler

// Option configures the environment run by Run().
type Option func(o *opts)

type opts struct {
	middleware []Middleware
}

// WithMiddleware configures the app's HTTP server to use the provided middleware.
//
// Middleware is evaluated in addition order, and configured middleware is executed after
// the app's default middleware.
func WithMiddleware(middleware Middleware) Option {
	return func(o *opts) {
		o.middleware = append(o.middleware, middleware)
	}
}

// requestIdMiddleware echoes the caller's request id, or assigns one when the
// caller didn't provide it.
func requestIdMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIdHeaderName)
			if len(id) == 0 {
				id = uuid.New().String()
				r.Header.Set(requestIdHeaderName, id)
			}
			w.Header().Set(requestIdHeaderName, id)

			next.ServeHTTP(w, r)
		})
	}
}

// recoveryMiddleware turns handler panics into internal server errors.
func recoveryMiddleware(log *logrus.Entry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					log.WithFields(logrus.Fields{
						"path":       r.URL.Path,
						"request_id": r.Header.Get(requestIdHeaderName),
						"panic":      recovered,
						"stack":      string(debug.Stack()),
					}).Error("recovered from handler panic")
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
