package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/promptgate/gateway/internal/eval"
)

func TestHTTPTransport_StartAndGracefulShutdown(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	evaluator := eval.New(s)

	transport := NewHTTPTransport(evaluator, s,
		WithAddr("127.0.0.1:0"),
		WithShutdownTimeout(2*time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- transport.Start(ctx) }()

	// Give the listener goroutine a moment to bind before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error after shutdown: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("transport did not shut down in time")
	}
}

func TestHTTPTransport_CloseBeforeStartIsNoop(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	evaluator := eval.New(s)
	transport := NewHTTPTransport(evaluator, s)

	if err := transport.Close(); err != nil {
		t.Fatalf("Close() before Start() returned error: %v", err)
	}
}

var _ http.Handler = (*EvalHandler)(nil)
