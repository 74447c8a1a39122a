// Package mocks provides in-memory sockets, bridges and stdio for tests.
package mocks

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// MockStdio stands in for the terminal. Stdin is a pipe fed by
// WriteToStdin, everything written to stdout is collected.
type MockStdio struct {
	stdinReader *io.PipeReader
	stdinWriter *io.PipeWriter

	mu     sync.Mutex
	output bytes.Buffer
	closed bool
}

// NewMockStdio creates a new mock stdio.
func NewMockStdio() *MockStdio {
	r, w := io.Pipe()
	return &MockStdio{stdinReader: r, stdinWriter: w}
}

// WriteToStdin simulates user input. It blocks until the input is read.
func (m *MockStdio) WriteToStdin(data []byte) (int, error) {
	return m.stdinWriter.Write(data)
}

// CloseStdin ends the input as if the user pressed Ctrl-D.
func (m *MockStdio) CloseStdin() {
	_ = m.stdinWriter.Close()
}

// ReadFromStdout returns everything written to stdout so far.
func (m *MockStdio) ReadFromStdout() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output.String()
}

// GetStdin returns the reader side of stdin.
func (m *MockStdio) GetStdin() io.Reader {
	return m.stdinReader
}

// GetStdout returns the stdout writer.
func (m *MockStdio) GetStdout() io.Writer {
	return stdoutWriter{m}
}

// WaitForOutput polls stdout until it contains expected or timeout passes.
func (m *MockStdio) WaitForOutput(expected string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		out := m.ReadFromStdout()
		if strings.Contains(out, expected) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for output %q, got: %q", expected, out)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close ends stdin and makes further stdout writes fail.
func (m *MockStdio) Close() error {
	m.CloseStdin()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type stdoutWriter struct {
	m *MockStdio
}

func (w stdoutWriter) Write(p []byte) (int, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	if w.m.closed {
		return 0, io.ErrClosedPipe
	}
	return w.m.output.Write(p)
}
