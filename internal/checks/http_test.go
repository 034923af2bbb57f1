package checks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/db"
)

func httpMonitor(url string) *db.Monitor {
	return &db.Monitor{ID: "m1", Type: db.MonitorTypeHTTP, URL: url, IsActive: true}
}

func TestHTTPChecker_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := NewHTTPChecker().Run(context.Background(), httpMonitor(srv.URL))

	if !result.Success {
		t.Errorf("Success = false, want true (message: %s)", result.Message)
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %v, want 200", result.StatusCode)
	}
	if result.ResponseTimeMs < 0 {
		t.Errorf("ResponseTimeMs = %d, want >= 0", result.ResponseTimeMs)
	}
}

func TestHTTPChecker_RedirectCountsAsUp(t *testing.T) {
	var target *httptest.Server
	target = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/redirect" {
			http.Redirect(w, r, target.URL+"/", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	result := NewHTTPChecker().Run(context.Background(), httpMonitor(target.URL+"/redirect"))

	if !result.Success {
		t.Errorf("Success = false after redirect, want true (message: %s)", result.Message)
	}
}

func TestHTTPChecker_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := NewHTTPChecker().Run(context.Background(), httpMonitor(srv.URL))

	if result.Success {
		t.Error("Success = true for 500, want false")
	}
	if result.StatusCode == nil || *result.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %v, want 500", result.StatusCode)
	}
	if result.Message != "unexpected status code: 500" {
		t.Errorf("Message = %q", result.Message)
	}
}

func TestHTTPChecker_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result := NewHTTPChecker().Run(ctx, httpMonitor(srv.URL))

	if result.Success {
		t.Error("Success = true after timeout, want false")
	}
	if result.Message != "timeout" {
		t.Errorf("Message = %q, want %q", result.Message, "timeout")
	}
}

func TestHTTPChecker_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	result := NewHTTPChecker().Run(context.Background(), httpMonitor(url))

	if result.Success {
		t.Error("Success = true against closed server, want false")
	}
	if result.StatusCode != nil {
		t.Error("StatusCode set without a response")
	}
	if result.Message == "" {
		t.Error("Message empty for transport error")
	}
}
