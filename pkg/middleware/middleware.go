// Package middleware contains HTTP middlewares that are not provided by chi.
package middleware

import "net/http"

type Middleware func(http.Handler) http.Handler
