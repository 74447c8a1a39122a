package serve

import (
	"context"
	"testing"
)

func TestGetCommand(t *testing.T) {
	t.Parallel()

	cmd := GetCommand()
	if cmd.Name != "serve" {
		t.Errorf("command name = %q; want %q", cmd.Name, "serve")
	}
	if cmd.Action == nil {
		t.Fatal("command action should not be nil")
	}
}

// it should reject bad listen addresses before listening
func TestServe_InvalidArguments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{"no address", []string{"serve"}},
		{"tcp address", []string{"serve", "tcp://:8080"}},
		{"bad port", []string{"serve", "ws://:70000"}},
		{"negative max conns", []string{"serve", "--max-conns", "-1", "ws://127.0.0.1:8080"}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if err := GetCommand().Run(context.Background(), tc.args); err == nil {
				t.Errorf("Run(%v) error = nil, want error", tc.args)
			}
		})
	}
}
