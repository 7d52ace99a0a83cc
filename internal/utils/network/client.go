package network

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds a whole request, body included.
const DefaultTimeout = 5 * time.Minute

// NewSecureHTTPClient returns a client that refuses TLS below 1.2 and
// bounds dial, handshake and header waits.
func NewSecureHTTPClient() *http.Client {
	return NewSecureHTTPClientWithTimeout(DefaultTimeout)
}

// NewSecureHTTPClientWithTimeout is NewSecureHTTPClient with an explicit overall timeout.
func NewSecureHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   8,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}
