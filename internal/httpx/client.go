// Package httpx builds the shared HTTP clients for scraping and streaming.
package httpx

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"podhaul/internal/config"
)

const (
	retryWait    = 500 * time.Millisecond
	retryMaxWait = 5 * time.Second
)

// NewScrapeClient returns the client used for listing pages, detail pages,
// and feeds. Responses are buffered; transient upstream errors are retried
// with backoff.
func NewScrapeClient(cfg *config.Config) *resty.Client {
	client := resty.New()
	client.SetHeader("User-Agent", cfg.HTTP.UserAgent)
	client.SetTimeout(time.Duration(cfg.HTTP.RequestTimeout) * time.Second)
	client.SetRetryCount(cfg.HTTP.Retries)
	client.SetRetryWaitTime(retryWait)
	client.SetRetryMaxWaitTime(retryMaxWait)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
	})
	return client
}

// NewStreamClient returns the client used for media transfers. The body is
// never buffered or parsed, there are no automatic retries (resume handles
// interruptions instead), and only the response headers are bounded by a
// timeout so long downloads are not cut off mid-stream.
func NewStreamClient(cfg *config.Config) *resty.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = time.Duration(cfg.HTTP.RequestTimeout) * time.Second

	client := resty.New()
	client.SetHeader("User-Agent", cfg.HTTP.UserAgent)
	client.SetTransport(transport)
	client.SetDoNotParseResponse(true)
	return client
}
