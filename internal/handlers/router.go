package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// NewRouter wires the auth surface. The gateway runs on every request;
// whether a route actually needs a principal is decided per route.
func NewRouter(
	auth *AuthHandler,
	gateway func(http.Handler) http.Handler,
	requirePrincipal func(http.Handler) http.Handler,
	loggerMiddleware func(http.Handler) http.Handler,
) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/social", auth.SocialLogin)
	mux.HandleFunc("POST /auth/refresh", auth.Refresh)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.Handle("POST /auth/logout/all", requirePrincipal(http.HandlerFunc(auth.LogoutAll)))
	mux.Handle("GET /auth/me", requirePrincipal(http.HandlerFunc(auth.Me)))

	return chain(mux,
		loggerMiddleware,
		gateway,
	)
}
