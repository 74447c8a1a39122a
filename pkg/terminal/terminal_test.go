package terminal

import (
	"os"
	"strings"
	"testing"
)

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	if IsTerminal(strings.NewReader("x")) {
		t.Error("IsTerminal(strings.Reader) = true, want false")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	defer r.Close()
	defer w.Close()

	if IsTerminal(r) {
		t.Error("IsTerminal(pipe) = true, want false")
	}
}
