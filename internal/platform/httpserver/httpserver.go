// Package httpserver constructs the process-wide http.Server from
// configuration. Shutdown is driven by the caller; see cmd/server.
package httpserver

import (
	"net/http"

	"gatehouse/internal/platform/config"
)

// New builds the server. ReadHeaderTimeout comes from configuration so slow
// header attacks cannot pin accepted connections indefinitely.
func New(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
