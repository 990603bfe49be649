package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Manager starts the server if needed and reports when it answers.
type Manager struct {
	logFunc    func(string)
	readyFunc  func(string)
	serverAddr string
	binary     string
	configPath string

	readyTimeout time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	serverCmd *exec.Cmd
}

func NewManager(log, ready func(string), serverAddr, binary, configPath string) *Manager {
	return &Manager{
		logFunc:      log,
		readyFunc:    ready,
		serverAddr:   serverAddr,
		binary:       binary,
		configPath:   configPath,
		readyTimeout: 30 * time.Second,
		pollInterval: time.Second,
	}
}

func (m *Manager) log(msg string) {
	if m.logFunc != nil {
		m.logFunc(msg)
	}
}

// Stop shuts down a server this manager started. A server that was already
// running is left alone.
func (m *Manager) Stop() {
	m.mu.Lock()
	owned := m.serverCmd != nil
	m.mu.Unlock()
	if !owned {
		return
	}

	url := fmt.Sprintf("http://%s/api/shutdown", m.resolveAddr())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("> API shutdown failed: %v\n", err)
		return
	}
	resp.Body.Close()
	fmt.Println("> Shutdown command sent successfully.")
}

// Start launches the server when it is not answering and waits for it in
// the background.
func (m *Manager) Start() {
	go func() {
		if m.isServerReady() {
			m.log("> Server already active.")
		} else {
			m.log(fmt.Sprintf("> Server not running. Starting %s...", m.binary))
			go m.runServer()
		}

		m.log("> Waiting for server...")
		deadline := time.Now().Add(m.readyTimeout)
		for time.Now().Before(deadline) {
			if m.isServerReady() {
				m.log("> Server ready!")
				if m.readyFunc != nil {
					m.readyFunc("http://" + m.resolveAddr())
				}
				return
			}
			time.Sleep(m.pollInterval)
		}
		m.log("> Error: Server timed out.")
	}()
}

func (m *Manager) runServer() {
	cmd := exec.Command(m.binary, "serve", "--config", m.configPath)
	m.mu.Lock()
	m.serverCmd = cmd
	m.mu.Unlock()
	if err := m.runWithOutput(cmd); err != nil {
		m.log(fmt.Sprintf("Server exited with error: %v", err))
	}
}

func (m *Manager) runWithOutput(cmd *exec.Cmd) error {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	go m.streamReader(stdout)
	go m.streamReader(stderr)

	return cmd.Wait()
}

func (m *Manager) streamReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.log(scanner.Text())
	}
}

func (m *Manager) resolveAddr() string {
	addr := m.serverAddr
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	if strings.HasPrefix(addr, "localhost:") {
		return strings.Replace(addr, "localhost:", "127.0.0.1:", 1)
	}
	if strings.HasPrefix(addr, "0.0.0.0:") {
		return strings.Replace(addr, "0.0.0.0:", "127.0.0.1:", 1)
	}
	return addr
}

func (m *Manager) isServerReady() bool {
	client := http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/version", m.resolveAddr()))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
