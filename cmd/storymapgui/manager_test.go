package main

import (
	"net/http"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestResolveAddr(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":1918", "127.0.0.1:1918"},
		{"localhost:1918", "127.0.0.1:1918"},
		{"0.0.0.0:1918", "127.0.0.1:1918"},
		{"192.168.1.5:80", "192.168.1.5:80"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			m := &Manager{serverAddr: tt.addr}
			if got := m.resolveAddr(); got != tt.want {
				t.Errorf("resolveAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartWithRunningServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"version":"test"}`))
	}))
	defer srv.Close()

	var mu sync.Mutex
	var lines []string
	ready := make(chan string, 1)
	m := NewManager(func(s string) {
		mu.Lock()
		lines = append(lines, s)
		mu.Unlock()
	}, func(url string) { ready <- url }, strings.TrimPrefix(srv.URL, "http://"), "does-not-exist", "cfg.yaml")
	m.pollInterval = 10 * time.Millisecond

	m.Start()

	select {
	case url := <-ready:
		if url != srv.URL {
			t.Errorf("ready url = %q, want %q", url, srv.URL)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("manager never reported ready")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) == 0 || lines[0] != "> Server already active." {
		t.Errorf("log = %v", lines)
	}
}

func TestStartTimesOut(t *testing.T) {
	done := make(chan struct{})
	var once sync.Once
	m := NewManager(func(s string) {
		if s == "> Error: Server timed out." {
			once.Do(func() { close(done) })
		}
	}, func(string) { t.Error("ready must not be reported") }, "127.0.0.1:1", "does-not-exist", "cfg.yaml")
	m.readyTimeout = 50 * time.Millisecond
	m.pollInterval = 10 * time.Millisecond

	m.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager never timed out")
	}
}

func TestStopOnlyShutsDownOwnedServer(t *testing.T) {
	var mu sync.Mutex
	shutdowns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/shutdown" {
			mu.Lock()
			shutdowns++
			mu.Unlock()
		}
	}))
	defer srv.Close()

	m := NewManager(nil, nil, strings.TrimPrefix(srv.URL, "http://"), "storymap", "cfg.yaml")
	m.Stop()
	mu.Lock()
	if shutdowns != 0 {
		t.Errorf("shutdowns = %d for a foreign server", shutdowns)
	}
	mu.Unlock()

	m.serverCmd = exec.Command("storymap")
	m.Stop()
	mu.Lock()
	defer mu.Unlock()
	if shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", shutdowns)
	}
}
