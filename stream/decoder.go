// Package stream decodes the line-framed event streams the backend emits
// from long-running workflow endpoints. Frames are `data: <json>` lines
// separated by blank lines; some older endpoints separate frames with a
// single newline, which the decoder accepts as well.
package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sercano/qahub/models"
)

// dataPrefix starts every event frame line.
const dataPrefix = "data: "

// readChunkSize is the read granularity. Frame boundaries never align with
// chunk boundaries, so correctness cannot depend on this value.
const readChunkSize = 4096

// ErrStreamClosed is returned by Next after the decoder saw a read fault.
var ErrStreamClosed = errors.New("event stream closed unexpectedly")

// Decoder incrementally decodes event frames from a byte stream. It is not
// safe for concurrent use; one goroutine owns a decoder.
type Decoder struct {
	r       io.Reader
	buf     []byte
	chunk   []byte
	eof     bool
	failed  error
	drained bool
}

// NewDecoder creates a decoder reading from r
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     r,
		chunk: make([]byte, readChunkSize),
	}
}

// Next returns the next frame in arrival order. It returns io.EOF when the
// source is exhausted, and a terminal error when the source faults mid-read.
// Malformed frames are returned with Malformed set rather than as errors.
func (d *Decoder) Next() (models.EventFrame, error) {
	if d.failed != nil {
		return models.EventFrame{}, d.failed
	}

	for {
		// Drain complete lines already buffered.
		for {
			idx := bytes.IndexByte(d.buf, '\n')
			if idx < 0 {
				break
			}
			line := d.buf[:idx]
			d.buf = d.buf[idx+1:]

			frame, ok := d.decodeLine(line)
			if ok {
				return frame, nil
			}
		}

		if d.eof {
			return d.finish()
		}

		n, err := d.r.Read(d.chunk)
		if n > 0 {
			d.buf = append(d.buf, d.chunk[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				d.eof = true
				continue
			}
			d.failed = fmt.Errorf("%w: %v", ErrStreamClosed, err)
			return models.EventFrame{}, d.failed
		}
	}
}

// decodeLine turns one complete line into a frame. Blank lines (the frame
// separator) and non-data lines yield no frame.
func (d *Decoder) decodeLine(line []byte) (models.EventFrame, bool) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return models.EventFrame{}, false
	}
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return models.EventFrame{}, false
	}

	payload := line[len(dataPrefix):]
	var frame models.EventFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return models.EventFrame{
			Malformed: true,
			Raw:       string(line),
		}, true
	}
	return frame, true
}

// finish handles the trailing buffer at end of stream: a complete unmarked
// final frame is emitted once; an incomplete fragment is dropped.
func (d *Decoder) finish() (models.EventFrame, error) {
	if d.drained || len(d.buf) == 0 {
		return models.EventFrame{}, io.EOF
	}
	d.drained = true

	line := bytes.TrimSuffix(d.buf, []byte("\r"))
	d.buf = nil
	if !bytes.HasPrefix(line, []byte(dataPrefix)) {
		return models.EventFrame{}, io.EOF
	}

	payload := line[len(dataPrefix):]
	if !json.Valid(payload) {
		// Truncated mid-frame; nothing trustworthy to emit.
		return models.EventFrame{}, io.EOF
	}

	var frame models.EventFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return models.EventFrame{}, io.EOF
	}
	return frame, nil
}

// Collect reads every remaining frame. Mostly a test convenience.
func Collect(d *Decoder) ([]models.EventFrame, error) {
	var frames []models.EventFrame
	for {
		frame, err := d.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
}
