package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/resilience"
)

// HTTPOptions configures the HTTP blob client.
type HTTPOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int

	// Token, when set, is sent as a bearer token on every request.
	Token string

	// RequestsPerSecond throttles calls against the upload service.
	// Zero means the default of 10 rps.
	RequestsPerSecond float64

	// RetryBackoff overrides the initial retry delay. Zero keeps the
	// resilience default.
	RetryBackoff time.Duration
}

// HTTPStorage reads and writes pay files against an HTTP upload service.
// Transient responses (429, 5xx, network timeouts) are retried with backoff.
type HTTPStorage struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTP creates an HTTPStorage for the given base URL.
func NewHTTP(opts HTTPOptions) (*HTTPStorage, error) {
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, eris.Wrapf(err, "blob: parse base url %s", opts.BaseURL)
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "paytrack/1.0"
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPStorage{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)),
	}, nil
}

func (s *HTTPStorage) keyURL(key string) (string, error) {
	u, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", eris.Wrapf(err, "blob: parse base url %s", s.opts.BaseURL)
	}
	u.Path = path.Join(u.Path, url.PathEscape(path.Base(key)))
	return u.String(), nil
}

// do builds a fresh request per attempt so a consumed body never leaks into
// a retry.
func (s *HTTPStorage) do(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = s.opts.MaxRetries
	cfg.InitialBackoff = s.opts.RetryBackoff
	cfg.OnRetry = resilience.RetryLogger("FETCHING", method+" "+target)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "blob: rate limiter wait")
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, eris.Wrap(err, "blob: create request")
		}
		req.Header.Set("User-Agent", s.opts.UserAgent)
		if s.opts.Token != "" {
			req.Header.Set("Authorization", "Bearer "+s.opts.Token)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(err, 0)
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			zap.L().Warn("blob request retryable status",
				zap.String("url", target),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(
				eris.Errorf("http %d from %s", resp.StatusCode, target), resp.StatusCode)
		}
		return resp, nil
	})
}

func (s *HTTPStorage) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	key := path.Base(name)
	target, err := s.keyURL(key)
	if err != nil {
		return "", err
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrapf(err, "blob: read payload for %s", key)
	}

	const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	resp, err := s.do(ctx, http.MethodPut, target, body, xlsxContentType)
	if err != nil {
		return "", eris.Wrapf(err, "blob: put %s", key)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return "", eris.Errorf("blob: put %s: unexpected status %d", key, resp.StatusCode)
	}
	return key, nil
}

// Fetch downloads the file to a temp path the caller must remove.
func (s *HTTPStorage) Fetch(ctx context.Context, key string) (string, error) {
	target, err := s.keyURL(key)
	if err != nil {
		return "", err
	}

	resp, err := s.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return "", eris.Wrapf(err, "blob: fetch %s", key)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("blob: fetch %s: unexpected status %d", key, resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "paytrack-*"+filepath.Ext(key))
	if err != nil {
		return "", eris.Wrap(err, "blob: create temp file")
	}
	defer tmp.Close() //nolint:errcheck

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", eris.Wrapf(err, "blob: write temp file for %s", key)
	}
	return tmp.Name(), nil
}
