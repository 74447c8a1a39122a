// Package frame implements the version 1 frame envelope carried over
// netpump: a little-endian int32 opcode followed by the payload.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// OpcodeSize is the length of the opcode header.
const OpcodeSize = 4

// ErrShortFrame is returned by Parse for frames without a full header.
var ErrShortFrame = errors.New("frame shorter than opcode header")

// Parse splits frame into opcode and payload. The payload aliases frame.
func Parse(frame []byte) (int32, []byte, error) {
	if len(frame) < OpcodeSize {
		return 0, nil, fmt.Errorf("%d bytes: %w", len(frame), ErrShortFrame)
	}
	return int32(binary.LittleEndian.Uint32(frame)), frame[OpcodeSize:], nil
}

// Build writes a frame into dst and returns the number of bytes written.
func Build(dst []byte, opcode int32, payload []byte) (int, error) {
	n := Size(len(payload))
	if len(dst) < n {
		return 0, fmt.Errorf("destination too small: need %d, have %d", n, len(dst))
	}
	binary.LittleEndian.PutUint32(dst, uint32(opcode))
	copy(dst[OpcodeSize:], payload)
	return n, nil
}

// Append appends a frame to dst.
func Append(dst []byte, opcode int32, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(opcode))
	return append(dst, payload...)
}

// Size returns the frame length for a payload of n bytes.
func Size(n int) int {
	return OpcodeSize + n
}
