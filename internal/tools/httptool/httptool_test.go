package httptool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExecuteReturnsBodyOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	tool := &Tool{}
	args, _ := json.Marshal(requestArgs{URL: srv.URL})
	_, result := tool.Execute(context.Background(), args)
	if result.Err != "" {
		t.Fatalf("unexpected error: %s", result.Err)
	}
}

func TestExecuteRejectsInvalidURL(t *testing.T) {
	tool := &Tool{}
	args, _ := json.Marshal(requestArgs{URL: "not-a-url"})
	_, result := tool.Execute(context.Background(), args)
	if result.Err == "" {
		t.Fatal("expected an InvalidUrl error")
	}
}

func TestExecuteRetriesOnRetryableStatusThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("finally"))
	}))
	defer srv.Close()

	tool := &Tool{}
	args, _ := json.Marshal(requestArgs{
		URL: srv.URL,
		Retry: &retryArgs{
			MaxAttempts:        5,
			BaseDelayMs:        1,
			RetryOnStatusCodes: []int{http.StatusServiceUnavailable},
		},
	})
	_, result := tool.Execute(context.Background(), args)
	if result.Err != "" {
		t.Fatalf("expected eventual success, got error: %s", result.Err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := &Tool{}
	args, _ := json.Marshal(requestArgs{
		URL: srv.URL,
		Retry: &retryArgs{
			MaxAttempts:        2,
			BaseDelayMs:        1,
			RetryOnStatusCodes: []int{http.StatusServiceUnavailable},
		},
	})
	_, result := tool.Execute(context.Background(), args)
	if result.Err == "" {
		t.Fatal("expected a NetworkError after exhausting retries")
	}
}
