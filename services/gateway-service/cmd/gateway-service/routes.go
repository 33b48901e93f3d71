package main

import (
	"embed"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/clinicflow/libs/auth"
	"github.com/md-rashed-zaman/clinicflow/libs/httpx"
)

//go:embed assets/gateway.v1.yaml
var openAPISpec embed.FS

type upstreams struct {
	scheduling    *url.URL
	notifications *url.URL
}

// registerRoutes mounts the public /api/v1 surface. Every API route needs a
// verified token; the caller is forwarded upstream as X-User-Id / X-Role.
func registerRoutes(mux *http.ServeMux, up upstreams, verifier *auth.Verifier) {
	scheduling := newProxy(up.scheduling)
	notifications := newProxy(up.notifications)
	authn := auth.Middleware(verifier, httpx.WriteError)

	for _, prefix := range []string{"/api/v1/appointments", "/api/v1/providers", "/api/v1/windows"} {
		registerProxy(mux, prefix, authn(forwardIdentity(http.StripPrefix("/api/v1", scheduling))))
	}
	registerProxy(mux, "/api/v1/notifications",
		authn(requireRole(forwardIdentity(http.StripPrefix("/api/v1", notifications)), "admin", "staff")))

	mux.HandleFunc("/openapi", func(w http.ResponseWriter, _ *http.Request) {
		data, err := openAPISpec.ReadFile("assets/gateway.v1.yaml")
		if err != nil {
			http.Error(w, "openapi not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	})
}

func newProxy(target *url.URL) *httputil.ReverseProxy {
	p := httputil.NewSingleHostReverseProxy(target)
	p.Transport = otelhttp.NewTransport(http.DefaultTransport)
	p.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
		httpx.WriteError(w, http.StatusBadGateway, "upstream unavailable")
	}
	return p
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// forwardIdentity replaces any client-supplied identity headers with the
// verified caller.
func forwardIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		r.Header.Del(auth.HeaderUserID)
		r.Header.Del(auth.HeaderRole)
		r.Header.Del("Authorization")
		r.Header.Set(auth.HeaderUserID, id.UserID)
		r.Header.Set(auth.HeaderRole, id.Role)
		next.ServeHTTP(w, r)
	})
}

func requireRole(next http.Handler, roles ...string) http.Handler {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		if _, ok := allowed[id.Role]; !ok {
			httpx.WriteErrorKind(w, http.StatusForbidden, "permission", "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
