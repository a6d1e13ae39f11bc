package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	DefaultPort    = "8080"
	DefaultTLSMode = TLSModeAutoCert

	TLSModeAutoCert = "autocert"
	TLSModeFile     = "file"

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type Server struct {
	Port string
	Host string
	TLS  ServerTLS
}

type ServerTLS struct {
	Enabled  bool
	Mode     string
	AutoCert *ServerTLSAutoCert
	CertFile string
	KeyFile  string
}

type ServerTLSAutoCert struct {
	CacheDir string
	Domains  []string
	Email    string
}

type UnknownTLSModeError struct {
	Mode string
}

func (err UnknownTLSModeError) Error() string {
	return fmt.Sprintf("unknown tls mode %q", err.Mode)
}

var ErrNoAutoCertDomains = errors.New("autocert needs at least one domain")

// Run serves handler until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(s.Host, s.Port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	serve, err := s.serveFunc(ctx, httpServer)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)

	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve http: %w", err)
		}

		return nil
	case <-ctx.Done():
	}

	slog.InfoContext(ctx, "shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}

func (s *Server) serveFunc(ctx context.Context, httpServer *http.Server) (func() error, error) {
	if !s.TLS.Enabled {
		slog.InfoContext(ctx, "server is listening", "address", "http://"+httpServer.Addr)

		return httpServer.ListenAndServe, nil
	}

	switch s.TLS.Mode {
	case TLSModeAutoCert:
		if s.TLS.AutoCert == nil || len(s.TLS.AutoCert.Domains) == 0 {
			return nil, ErrNoAutoCertDomains
		}

		certManager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(s.TLS.AutoCert.CacheDir),
			HostPolicy: autocert.HostWhitelist(s.TLS.AutoCert.Domains...),
			Email:      s.TLS.AutoCert.Email,
		}

		httpServer.TLSConfig = &tls.Config{
			GetCertificate: certManager.GetCertificate,
			NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
			MinVersion:     tls.VersionTLS12,
		}

		slog.InfoContext(ctx, "server is listening", "address", domainsToHTTPSAddress(s.TLS.AutoCert.Domains))

		return func() error {
			return httpServer.ListenAndServeTLS("", "")
		}, nil
	case TLSModeFile:
		slog.InfoContext(ctx, "server is listening", "address", "https://"+httpServer.Addr)

		return func() error {
			return httpServer.ListenAndServeTLS(s.TLS.CertFile, s.TLS.KeyFile)
		}, nil
	default:
		return nil, &UnknownTLSModeError{Mode: s.TLS.Mode}
	}
}

func domainsToHTTPSAddress(domains []string) string {
	addresses := make([]string, 0, len(domains))

	for _, domain := range domains {
		addresses = append(addresses, "https://"+domain)
	}

	return strings.Join(addresses, ", ")
}
