package webd

import (
	ghandlers "github.com/gorilla/handlers"
	"io"
	"net"
	"net/http"
	"strings"
)

const headerToken = "X-Tripd-Token"

// tokenAuthenticationMiddleware checks for the configured token in the X-Tripd-Token header,
// or else the api_token query parameter. A mismatch is a 403 Forbidden.
// If no token is configured, it allows all requests.
func (s *WebDaemon) tokenAuthenticationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Config.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get(headerToken)
		if token == "" {
			token = r.URL.Query().Get("api_token")
		}
		if token != s.Config.Token {
			s.logger.Warn("Invalid token", "method", r.Method, "url", r.URL.Path,
				"remote", remoteHost(r), "user-agent", r.UserAgent())
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func permissiveCorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Add("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept, Authorization, "+headerToken)
		next.ServeHTTP(w, r)
	})
}

func contentTypeMiddlewareFunc(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", contentType)
			next.ServeHTTP(w, r)
		})
	}
}

// remoteHost is the client address, followed by any proxies it came through.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	for _, v := range r.Header.Values("X-Forwarded-For") {
		host += "->" + v
	}
	return host
}

// writeLog logs one access line per request, with the fields of the Apache Common Log Format.
func (s *WebDaemon) writeLog(_ io.Writer, params ghandlers.LogFormatterParams) {
	req := params.Request
	username := "-"
	if params.URL.User != nil {
		if name := params.URL.User.Username(); name != "" {
			username = name
		}
	}
	uri := req.RequestURI
	if uri == "" {
		uri = params.URL.RequestURI()
	}
	s.logger.Info("HTTP",
		"host", remoteHost(req),
		"user", username,
		"method", req.Method,
		"uri", strings.ToValidUTF8(uri, "?"),
		"proto", req.Proto,
		"status", params.StatusCode,
		"size", params.Size,
	)
}

func (s *WebDaemon) loggingMiddleware(next http.Handler) http.Handler {
	return ghandlers.CustomLoggingHandler(io.Discard, next, s.writeLog)
}
