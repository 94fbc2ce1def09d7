// Package httpclient configures the HTTP client used to download tiles.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

// NewOutbound creates a client tuned for many small requests against a few
// tile hosts. perHost should match the print worker count so every worker
// can keep a connection alive. Per-request deadlines come from the caller's
// context.
func NewOutbound(perHost int) *http.Client {
	if perHost <= 0 {
		perHost = 16
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4 * perHost,
		MaxIdleConnsPerHost:   perHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   2 * time.Minute,
	}
}
