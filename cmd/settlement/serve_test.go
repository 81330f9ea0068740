package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startServer(t *testing.T, handler http.HandlerFunc) (*http.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	go func() { _ = server.Serve(lis) }()
	return server, "http://" + lis.Addr().String()
}

func TestDrainHTTP_WaitsForInFlightCheckout(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	entered := make(chan struct{})
	server, url := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan int, 1)
	go func() {
		resp, err := http.Get(url)
		if err != nil {
			done <- 0
			return
		}
		_ = resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-entered

	require.NoError(t, drainHTTP(server, 2*time.Second, zap.New(core)))
	assert.Equal(t, http.StatusOK, <-done)
	assert.Zero(t, logs.Len())
}

func TestDrainHTTP_DeadlineIsLoggedAsError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	entered := make(chan struct{})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	server, url := startServer(t, func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
	})

	go func() {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-entered

	err := drainHTTP(server, 50*time.Millisecond, zap.New(core))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	entries := logs.FilterMessageSnippet("reconcile").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 50*time.Millisecond, entries[0].ContextMap()["shutdown_timeout"])
}
