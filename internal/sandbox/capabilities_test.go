package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCommandBuilderRunCapturesOutput(t *testing.T) {
	c := NewCommandBuilder("/bin/echo").WithArgs([]string{"hello"})
	result := c.Run(context.Background())
	if result.Status.Kind != "exited" || result.Status.Code != 0 {
		t.Fatalf("unexpected status: %+v", result.Status)
	}
	if result.Stdout != "hello\n" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
}

func TestCommandBuilderTimeoutExpires(t *testing.T) {
	c := NewCommandBuilder("/bin/sleep").WithArgs([]string{"5"}).WithTimeout(10 * time.Millisecond)
	result := c.Run(context.Background())
	if result.Status.Kind != "timeout_expired" {
		t.Fatalf("expected timeout_expired, got %+v", result.Status)
	}
}

func TestCommandBuilderRunIsImmutableAcrossCalls(t *testing.T) {
	base := NewCommandBuilder("/bin/echo")
	withArgs := base.WithArgs([]string{"x"})
	if len(base.Args) != 0 {
		t.Fatal("WithArgs must not mutate the receiver")
	}
	if len(withArgs.Args) != 1 {
		t.Fatal("WithArgs must apply to the returned builder")
	}
}

func TestHTTPBuilderSendRetriesOnConfiguredStatus(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	h := NewHTTPBuilder("GET", srv.URL).WithRetry(3, time.Millisecond).WithRetryOnStatusCodes([]int{http.StatusServiceUnavailable})
	resp, err := h.Send(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != http.StatusOK || resp.Body != "ok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestResourceTableConsumeInvalidatesCommandHandle(t *testing.T) {
	tbl := NewResourceTable()
	h := tbl.Insert(NewCommandBuilder("/bin/true"))
	next, err := tbl.Replace(h, NewCommandBuilder("/bin/true").WithArgs([]string{"-v"}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Get(h); err != ErrProtocolViolation {
		t.Fatalf("expected stale handle rejection, got %v", err)
	}
	got, err := tbl.Get(next)
	if err != nil {
		t.Fatal(err)
	}
	if cb, ok := got.(CommandBuilder); !ok || len(cb.Args) != 1 {
		t.Fatalf("unexpected replaced builder: %+v", got)
	}
}
