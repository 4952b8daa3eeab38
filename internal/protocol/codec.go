package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxPayloadSize caps a single inbound line when no size is configured.
const DefaultMaxPayloadSize = 4096

// ErrPayloadTooLarge reports a line that exceeded the reader's cap. The line
// has already been skipped, so the stream stays usable.
var ErrPayloadTooLarge = errors.New("protocol: payload exceeds maximum size")

// Reader splits a byte stream into newline-terminated payloads. It buffers
// internally, so a payload may span several socket reads and one read may
// carry several payloads.
type Reader struct {
	br  *bufio.Reader
	max int
}

// NewReader wraps r. maxPayload <= 0 selects DefaultMaxPayloadSize.
func NewReader(r io.Reader, maxPayload int) *Reader {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayloadSize
	}
	// room for the payload plus "\r\n"
	return &Reader{br: bufio.NewReaderSize(r, maxPayload+2), max: maxPayload}
}

// ReadPayload returns the next non-blank line with its line ending removed.
// An unterminated tail before EOF is returned as a final payload; the call
// after it returns io.EOF.
func (r *Reader) ReadPayload() ([]byte, error) {
	for {
		line, err := r.br.ReadSlice('\n')
		switch {
		case err == nil:
			payload := trimLine(line)
			if len(payload) == 0 {
				continue
			}
			if len(payload) > r.max {
				return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, r.max)
			}
			return bytes.Clone(payload), nil
		case errors.Is(err, bufio.ErrBufferFull):
			if derr := r.skipLine(); derr != nil {
				return nil, derr
			}
			return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, r.max)
		case errors.Is(err, io.EOF):
			payload := trimLine(line)
			if len(payload) == 0 {
				return nil, io.EOF
			}
			if len(payload) > r.max {
				return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, r.max)
			}
			return bytes.Clone(payload), nil
		default:
			return nil, err
		}
	}
}

// skipLine discards input up to and including the next newline.
func (r *Reader) skipLine() error {
	for {
		_, err := r.br.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func trimLine(line []byte) []byte {
	return bytes.TrimSpace(line)
}

// Writer emits newline-terminated payloads and flushes after each one.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteLine writes an already encoded payload followed by "\n" and flushes.
func (w *Writer) WriteLine(payload []byte) error {
	if _, err := w.bw.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush payload: %w", err)
	}
	return nil
}

// WriteCommand encodes v as JSON and writes it as one line.
func (w *Writer) WriteCommand(v any) error {
	b, err := Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteLine(b)
}
