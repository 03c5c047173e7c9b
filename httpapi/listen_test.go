package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServeStopsOnContextCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, handler) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/ping")
	if err != nil {
		cancel()
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "pong" {
		t.Fatalf("unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestListenAndServeRejectsBadAddr(t *testing.T) {
	if err := ListenAndServe(context.Background(), "127.0.0.1:-1", http.NotFoundHandler()); err == nil {
		t.Fatalf("expected listen error")
	}
}
