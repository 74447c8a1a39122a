package log

import (
	"encoding/hex"
	"fmt"
	"os"
	"sync"
)

// FrameLog appends a hex dump of every frame sent or received to a file.
type FrameLog struct {
	mu   sync.Mutex
	file *os.File
}

// NewFrameLog opens (or creates) the log file at path for appending.
func NewFrameLog(path string) (*FrameLog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FrameLog{file: f}, nil
}

// Sent records an outbound frame.
func (fl *FrameLog) Sent(sessionID int, frame []byte) error {
	return fl.write(">>", sessionID, frame)
}

// Received records an inbound frame.
func (fl *FrameLog) Received(sessionID int, frame []byte) error {
	return fl.write("<<", sessionID, frame)
}

func (fl *FrameLog) write(dir string, sessionID int, frame []byte) error {
	if fl == nil {
		return nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if _, err := fmt.Fprintf(fl.file, "%s session=%d len=%d\n%s", dir, sessionID, len(frame), hex.Dump(frame)); err != nil {
		return fmt.Errorf("writing frame log: %s", err)
	}
	return nil
}

// Close closes the log file.
func (fl *FrameLog) Close() error {
	if fl == nil {
		return nil
	}
	return fl.file.Close()
}
