package server

import (
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// New creates the HTTP server. Every request runs inside an OpenTelemetry span.
func New(addr string, router *ginext.Engine) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(router, "notifier"),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
