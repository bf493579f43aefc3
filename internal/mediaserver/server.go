// Package mediaserver implements spec.md §4.4's loopback HTTP server:
// ephemeral port, per-run token, and the /files, /absolute, /proxy, /hls
// endpoints. Grounded on the teacher's internal/tuner/server.go for the
// ServeMux/request-logging/graceful-shutdown shape, generalized from a
// tuner's fixed :5004 listener to an OS-assigned loopback port.
package mediaserver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"net/http"
	"time"

	"github.com/otakuhaven/otakuback/internal/logging"
	"github.com/otakuhaven/otakuback/internal/metrics"
)

var log = logging.For("mediaserver")

// Server is the loopback media server. A fresh token and port are chosen
// every process start (spec.md §4.4: "tokens and ports change every
// process start").
type Server struct {
	DownloadsRoot string // root directory /files paths resolve inside
	ProxyUA       string // User-Agent sent on /proxy and /hls upstream fetches

	token    string
	listener net.Listener
}

// NewServer builds a server rooted at downloadsRoot with a freshly
// generated 32-character hex token.
func NewServer(downloadsRoot string) (*Server, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	return &Server{DownloadsRoot: downloadsRoot, ProxyUA: "otakuback-mediaserver/1.0", token: token}, nil
}

func generateToken() (string, error) {
	buf := make([]byte, 16) // 16 bytes -> 32 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Token returns the current run's auth token.
func (s *Server) Token() string { return s.token }

// SetToken overrides the generated token, e.g. when the embedding host
// pins a token via configuration instead of letting one be generated.
func (s *Server) SetToken(token string) { s.token = token }

// Addr returns the bound loopback address once Run has started listening,
// or empty before that.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run binds an ephemeral loopback port and serves until ctx is cancelled,
// per spec.md §4.4 / §5's bounded-shutdown expectations.
func (s *Server) Run(ctx context.Context, bindAddr string) error {
	if bindAddr == "" {
		bindAddr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return err
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.Handle("/files/", tokenGate(s.token, http.HandlerFunc(s.handleFiles)))
	mux.Handle("/absolute", tokenGate(s.token, http.HandlerFunc(s.handleAbsolute)))
	mux.Handle("/proxy", tokenGate(s.token, http.HandlerFunc(s.handleProxy)))
	mux.Handle("/hls", tokenGate(s.token, http.HandlerFunc(s.handleHLS)))

	httpServer := &http.Server{Handler: Compress(logRequests(mux))}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("media server listening on %s", ln.Addr().String())
		serverErr <- httpServer.Serve(ln)
	}()

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("media server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("media server shutdown: %v", err)
		}
		<-serverErr
		return nil
	}
}

// tokenGate enforces spec.md §4.4's ?token= check on every request except
// OPTIONS, which must be answered unconditionally for CORS preflight.
func tokenGate(expected string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.URL.Query().Get("token") != expected || expected == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *loggingResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w}
		next.ServeHTTP(lw, r)
		status := lw.status
		if status == 0 {
			status = http.StatusOK
		}
		metrics.MediaServerRequestsTotal.WithLabelValues(r.URL.Path, http.StatusText(status)).Inc()
		log.Debug("http: %s %s status=%d dur=%s", r.Method, r.URL.Path, status, time.Since(start).Round(time.Millisecond))
	})
}
