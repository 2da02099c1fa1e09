package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggingMiddleware_TraceFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := RequestIDMiddleware(LoggingMiddleware(zap.New(core))(SessionMiddleware(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	req.Header.Set(HeaderSessionID, "sess-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, "sess-42", fields["session_id"])
}

func TestLoggingMiddleware_NoSpan(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := LoggingMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, 1, logs.Len())
	assert.NotContains(t, logs.All()[0].ContextMap(), "trace_id")
}

func TestSessionMiddleware_ReplacesOversizedID(t *testing.T) {
	var seen string
	handler := SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getSessionID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set(HeaderSessionID, strings.Repeat("x", 200))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, seen)
	assert.Less(t, len(seen), 200)
	assert.Equal(t, seen, rec.Header().Get(HeaderSessionID))
}

func TestRateLimiter_KeysByClientAddress(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := SessionMiddleware(rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	send := func(session, remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
		req.RemoteAddr = remote
		if session != "" {
			req.Header.Set(HeaderSessionID, session)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("sess-1", "10.0.0.1:5000"))
	// a fresh session id and source port from the same host share the bucket
	assert.Equal(t, http.StatusTooManyRequests, send("sess-2", "10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, send("", "10.0.0.1:5002"))
	assert.Equal(t, http.StatusOK, send("sess-1", "10.0.0.2:5000"))
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiter_CleanupDropsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")

	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	assert.Equal(t, 1, rl.cleanup(time.Now()))
	assert.Equal(t, 1, rl.size())
	// lookups alone never sweep
	rl.mu.Lock()
	rl.visitors["10.0.0.2"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()
	rl.getLimiter("10.0.0.3")
	assert.Equal(t, 2, rl.size())
}

func TestRateLimiter_RunSweepsOnTicker(t *testing.T) {
	rl := NewRateLimiter(60, 1)
	rl.getLimiter("10.0.0.1")
	rl.mu.Lock()
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-time.Hour)
	rl.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rl.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return rl.size() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
