package checks

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/db"
)

type HTTPChecker struct {
	client *http.Client
	method string
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: false,
				},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		method: http.MethodGet,
	}
}

func (h *HTTPChecker) Run(ctx context.Context, monitor *db.Monitor) *Result {
	result := &Result{}

	req, err := http.NewRequestWithContext(ctx, h.method, monitor.URL, nil)
	if err != nil {
		result.Message = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	result.ResponseTimeMs = int(time.Since(start).Milliseconds())

	if err != nil {
		result.Message = probeErrorMessage(ctx, err)
		return result
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.StatusCode = &code

	// Redirect chains are followed by the client, so anything left in
	// the 3xx range still counts as reachable.
	if code >= 200 && code < 400 {
		result.Success = true
		result.Message = resp.Status
	} else {
		result.Message = fmt.Sprintf("unexpected status code: %d", code)
	}

	return result
}

// probeErrorMessage collapses transport errors into the stored check
// message, preferring a plain "timeout" when the deadline was the cause.
func probeErrorMessage(ctx context.Context, err error) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "timeout"
	}
	return err.Error()
}
