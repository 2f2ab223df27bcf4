package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func getHealth(t *testing.T, h http.Handler, path string) (int, healthResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	var body healthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	return rr.Code, body
}

func TestHealthServer_Liveness(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())

	code, body := getHealth(t, server.Handler(), "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestHealthServer_Readiness_Transition(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())
	handler := server.Handler()

	code, body := getHealth(t, handler, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body.Status)

	server.SetReady(true)
	code, body = getHealth(t, handler, "/health/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	server.SetReady(false)
	code, _ = getHealth(t, handler, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHealthServer_ReportsLastCycle(t *testing.T) {
	server := NewHealthServer(":0", discardLogger())
	server.SetReady(true)
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	_, body := getHealth(t, server.Handler(), "/health/ready")
	assert.Nil(t, body.LastCycle, "no cycle has run yet")

	server.RecordCycle(at, errors.New("digest dispatch failed"))
	code, body := getHealth(t, server.Handler(), "/health/ready")

	assert.Equal(t, http.StatusOK, code, "a failed cycle does not make the worker unready")
	require.NotNil(t, body.LastCycle)
	assert.False(t, body.LastCycle.OK)
	assert.Equal(t, "digest dispatch failed", body.LastCycle.Error)
	assert.True(t, at.Equal(body.LastCycle.At))

	server.RecordCycle(at.Add(5*time.Minute), nil)
	_, body = getHealth(t, server.Handler(), "/health/ready")
	require.NotNil(t, body.LastCycle)
	assert.True(t, body.LastCycle.OK)
	assert.Empty(t, body.LastCycle.Error)
}

func TestHealthServer_GracefulShutdown(t *testing.T) {
	server := NewHealthServer("localhost:19095", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://localhost:19095/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-errChan:
		assert.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown timeout")
	}

	_, err := http.Get("http://localhost:19095/health")
	assert.Error(t, err, "expected connection error after shutdown")
}

func TestNewHealthServer(t *testing.T) {
	server := NewHealthServer(":9091", discardLogger())

	assert.Equal(t, ":9091", server.addr)
	assert.NotNil(t, server.logger)
	assert.False(t, server.IsReady(), "server should start as not ready")
}
