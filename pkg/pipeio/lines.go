package pipeio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/muesli/cancelreader"
)

// ScanLines calls fn with every line read from r, without the line ending.
// The slice passed to fn is only valid during the call. Lines longer than
// maxLine are an error. A cancelled reader ends the scan without error.
func ScanLines(r io.Reader, maxLine int, fn func(line []byte) error) error {
	// room for the line ending; the scanner limit is max(cap, limit)
	limit := maxLine + 2
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(4096, limit)), limit)

	for sc.Scan() {
		line := bytes.TrimSuffix(sc.Bytes(), []byte("\r"))
		if len(line) > maxLine {
			return fmt.Errorf("line longer than %d bytes: %w", maxLine, bufio.ErrTooLong)
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	err := sc.Err()
	switch {
	case err == nil, errors.Is(err, cancelreader.ErrCanceled):
		return nil
	case errors.Is(err, bufio.ErrTooLong):
		return fmt.Errorf("line longer than %d bytes: %w", maxLine, err)
	default:
		return fmt.Errorf("reading input: %w", err)
	}
}

// WriteLine writes p followed by a newline as one write.
func WriteLine(w io.Writer, p []byte) error {
	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, p...)
	buf = append(buf, '\n')
	_, err := w.Write(buf)
	return err
}
