package webhdfs

import (
	"context"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options configure the transport of a Client.
type Options struct {
	// User is sent as user.name with every request.
	User string

	// Timeout is the time to wait for the response headers of a single attempt.
	Timeout time.Duration

	// RetryMax is the number of retries after the first attempt.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// MaxRequestsPerSecond limits outgoing requests; 0 means no limit.
	MaxRequestsPerSecond float64

	// TLS selects https instead of http.
	TLS bool
}

// DefaultOptions are used for zero fields of the options passed to New.
var DefaultOptions = Options{
	Timeout:      30 * time.Second,
	RetryMax:     3,
	RetryWaitMin: 100 * time.Millisecond,
	RetryWaitMax: 2 * time.Second,
}

func (opts Options) withDefaults() Options {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions.Timeout
	}

	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = DefaultOptions.RetryWaitMin
	}

	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = opts.RetryWaitMin
	}

	return opts
}

// checkRetry retries transport failures and the statuses a busy,
// rate limited or restarting namenode answers with. Everything else is final.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err != nil {
		return true, nil
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true, nil
	}

	return false, nil
}

// leveledLogger routes the retry logs to logrus.
type leveledLogger struct {
	entry *log.Entry
}

func (ll leveledLogger) with(kvs []interface{}) *log.Entry {
	fields := log.Fields{}
	for idx := 0; idx+1 < len(kvs); idx += 2 {
		if key, ok := kvs[idx].(string); ok {
			fields[key] = kvs[idx+1]
		}
	}

	return ll.entry.WithFields(fields)
}

func (ll leveledLogger) Error(msg string, kvs ...interface{}) { ll.with(kvs).Warn(msg) }
func (ll leveledLogger) Info(msg string, kvs ...interface{})  { ll.with(kvs).Debug(msg) }
func (ll leveledLogger) Debug(msg string, kvs ...interface{}) { ll.with(kvs).Debug(msg) }
func (ll leveledLogger) Warn(msg string, kvs ...interface{})  { ll.with(kvs).Warn(msg) }

func newTransport(addr string, opts Options) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = leveledLogger{entry: log.WithField("addr", addr)}

	// Redirects are part of the protocol and handled by the client.
	rc.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if tr, ok := rc.HTTPClient.Transport.(*http.Transport); ok {
		tr.ResponseHeaderTimeout = opts.Timeout
	}

	return rc
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}

	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return rate.NewLimiter(rate.Limit(rps), burst)
}
