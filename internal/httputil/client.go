package httputil

import (
	"net/http"
	"time"
)

// DefaultTimeout suits the forecast API, which can be slow when assembling
// long hourly series.
const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the standard forecast-API timeout.
func NewClient() *http.Client {
	return NewClientWithTimeout(DefaultTimeout)
}

// NewClientWithTimeout returns an HTTP client with an explicit timeout, for
// services with tighter latency expectations than the forecast API.
func NewClientWithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
