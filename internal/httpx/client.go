// Package httpx builds the HTTP clients used to talk to the portal.
package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2/proxy"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 20 * time.Second

	// DefaultMaxIdleConns is the default maximum number of idle connections
	DefaultMaxIdleConns = 20

	// DefaultMaxIdleConnsPerHost is the default maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 4

	// DefaultIdleConnTimeout is the default idle connection timeout
	DefaultIdleConnTimeout = 90 * time.Second

	// DefaultTLSHandshakeTimeout is the default TLS handshake timeout
	DefaultTLSHandshakeTimeout = 10 * time.Second
)

// ClientConfig configures an HTTP client.
type ClientConfig struct {
	// Timeout specifies a time limit for requests made by this Client.
	Timeout time.Duration

	// ProxyURLs are rotated round robin per request. Supported schemes are http,
	// https and socks5. Empty means direct connections.
	ProxyURLs []string

	// MaxIdleConnsPerHost, if non-zero, controls the maximum idle
	// (keep-alive) connections to keep per-host.
	MaxIdleConnsPerHost int
}

// NewClient creates an HTTP client safe for concurrent use by the worker pool.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// NewTransport creates the transport, wiring proxy rotation when configured.
func NewTransport(cfg ClientConfig) (*http.Transport, error) {
	perHost := cfg.MaxIdleConnsPerHost
	if perHost == 0 {
		perHost = DefaultMaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: perHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
	}

	if len(cfg.ProxyURLs) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(cfg.ProxyURLs...)
		if err != nil {
			return nil, fmt.Errorf("configure proxy rotation: %w", err)
		}
		transport.Proxy = switcher
	}

	return transport, nil
}
