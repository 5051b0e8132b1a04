package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/http2"

	"github.com/rescale/bucketdesk/internal/config"
	"github.com/rescale/bucketdesk/internal/constants"
)

// CreateOptimizedClient creates the HTTP client shared by the storage
// provider SDKs, with proxy support.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - Connection pool sized for paginated listings against one endpoint
//   - HTTP/2 unless a proxy is active or DISABLE_HTTP2=true
//   - No overall client timeout; callers bound each operation with a context
func CreateOptimizedClient(proxy *config.ProxyConfig) (*nethttp.Client, error) {
	baseClient, err := ConfigureHTTPClient(proxy)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a Negotiator; leave it as is.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.MaxIdleConns = 64
	tr.MaxIdleConnsPerHost = 16
	tr.MaxConnsPerHost = 32
	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.TLSHandshakeTimeout = constants.HTTPTLSHandshakeTimeout
	tr.ExpectContinueTimeout = constants.HTTPExpectContinueTimeout

	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Set DISABLE_HTTP2=true to force HTTP/1.1
	if os.Getenv("DISABLE_HTTP2") == "true" {
		disableHTTP2(tr)
	}

	// Proxies often mishandle HTTP/2 multiplexing. FORCE_HTTP2=true overrides.
	if proxy != nil && proxy.ProxyActive() && os.Getenv("FORCE_HTTP2") != "true" {
		disableHTTP2(tr)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func disableHTTP2(tr *nethttp.Transport) {
	tr.ForceAttemptHTTP2 = false
	tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
}

// NewRetryingClient wraps CreateOptimizedClient with retries for transient
// failures. The provider SDKs get this client with their own retryers
// disabled, so a request is retried in exactly one place.
func NewRetryingClient(proxy *config.ProxyConfig) (*nethttp.Client, error) {
	httpClient, err := CreateOptimizedClient(proxy)
	if err != nil {
		return nil, err
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.MaxRetries
	retryClient.RetryWaitMin = constants.RetryWaitMin
	retryClient.RetryWaitMax = constants.RetryWaitMax
	retryClient.CheckRetry = CheckRetry
	retryClient.Backoff = Backoff
	retryClient.Logger = &retryLogger{}

	return retryClient.StandardClient(), nil
}

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct{}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	httpLogger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Only log errors and warnings, not all info
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	httpLogger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	httpLogger.Warn().Fields(keysAndValues).Msg(msg)
}
