package checks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/db"
	"golang.org/x/time/rate"
)

// QuotaExhausted marks a tick skipped by the local rate limiter or
// rejected upstream with 429. Both are transient: the next scheduled
// tick retries, nothing retries inline.
const QuotaExhausted = "pagespeed quota exhausted"

// PagespeedChecker scores a page through an external Lighthouse API.
// The external quota is guarded by a local token-bucket limiter.
type PagespeedChecker struct {
	client  *http.Client
	apiURL  string
	apiKey  string
	limiter *rate.Limiter
}

func NewPagespeedChecker(apiURL, apiKey string, requestsPerMin int) *PagespeedChecker {
	if requestsPerMin < 1 {
		requestsPerMin = 1
	}
	return &PagespeedChecker{
		client:  &http.Client{},
		apiURL:  apiURL,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMin)), requestsPerMin),
	}
}

type lighthouseResponse struct {
	LighthouseResult struct {
		Categories struct {
			Performance   lighthouseCategory `json:"performance"`
			Accessibility lighthouseCategory `json:"accessibility"`
			BestPractices lighthouseCategory `json:"best-practices"`
			SEO           lighthouseCategory `json:"seo"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
}

type lighthouseCategory struct {
	Score float64 `json:"score"`
}

func (p *PagespeedChecker) Run(ctx context.Context, monitor *db.Monitor) *Result {
	result := &Result{}

	if !p.limiter.Allow() {
		result.Message = QuotaExhausted
		return result
	}

	q := url.Values{}
	q.Set("url", monitor.URL)
	if p.apiKey != "" {
		q.Set("key", p.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		result.Message = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	result.ResponseTimeMs = int(time.Since(start).Milliseconds())

	if err != nil {
		result.Message = probeErrorMessage(ctx, err)
		return result
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	result.StatusCode = &code

	if code == http.StatusTooManyRequests {
		result.Message = QuotaExhausted
		return result
	}
	if code != http.StatusOK {
		result.Message = fmt.Sprintf("unexpected status code: %d", code)
		return result
	}

	var body lighthouseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Message = fmt.Sprintf("failed to decode response: %v", err)
		return result
	}

	cats := body.LighthouseResult.Categories
	result.Success = true
	result.Message = "Success"
	result.Metrics = db.JSONB{
		"performance":    int(cats.Performance.Score * 100),
		"accessibility":  int(cats.Accessibility.Score * 100),
		"best_practices": int(cats.BestPractices.Score * 100),
		"seo":            int(cats.SEO.Score * 100),
	}

	return result
}
