package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servopwm.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestRun_StopsOnCancel(t *testing.T) {
	path := writeConfig(t, `
i2c:
  mock: true
channels:
  - name: led
    index: 0
    duty: 10
    on: true
`)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path, nil) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
}

func TestRun_BadConfig(t *testing.T) {
	err := run(context.Background(), writeConfig(t, "pwm:\n  frequency_hz: 5\n"), nil)
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("err=%v", err)
	}
}

func TestRun_WebListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	path := writeConfig(t, "i2c:\n  mock: true\nweb:\n  listen: "+ln.Addr().String()+"\n")
	done := make(chan error, 1)
	go func() { done <- run(context.Background(), path, nil) }()
	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "web server stopped") {
			t.Fatalf("err=%v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not report the listen failure")
	}
}
