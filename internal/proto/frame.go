package proto

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ServerSender is the reserved name frames originated by the server carry as
// their payload prefix.
const ServerSender = "server"

var (
	// ErrEmptyFrame is returned for a bare newline or a closed connection;
	// both mean the client hung up.
	ErrEmptyFrame = errors.New("proto: empty frame")
	// ErrFrameTooLarge is returned when a frame exceeds the reader's limit.
	ErrFrameTooLarge = errors.New("proto: frame too large")
	// ErrInvalidCommand is returned for an unknown command byte.
	ErrInvalidCommand = errors.New("proto: invalid command")
)

// Frame is a single unit of the chat protocol: one command byte followed by a
// UTF-8 payload, terminated by a newline that is never part of the payload.
type Frame struct {
	Command Command
	Payload string
}

// FromServer reports whether the payload carries the server prefix.
func (f Frame) FromServer() bool {
	return strings.HasPrefix(f.Payload, ServerSender+":")
}

// ServerFrame builds a server-originated frame, prefixing the payload.
func ServerFrame(cmd Command, payload string) Frame {
	return Frame{Command: cmd, Payload: ServerSender + ":" + payload}
}

// Reader decodes frames from a stream.
type Reader struct {
	r     *bufio.Reader
	limit int
}

// NewReader wraps r with a frame decoder. limit bounds the payload size in
// bytes and is enforced while the frame streams in; zero means no bound.
func NewReader(r io.Reader, limit int) *Reader {
	return &Reader{r: bufio.NewReader(r), limit: limit}
}

// Read decodes the next frame. It returns ErrEmptyFrame when the client sends
// a bare newline or closes the connection mid-frame, and io.EOF only on a
// clean end of stream before any byte of a frame. The size limit is checked
// as bytes arrive, so an endless frame fails without buffering it whole.
func (r *Reader) Read() (Frame, error) {
	var line []byte
	for {
		chunk, err := r.r.ReadSlice('\n')
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if err == io.EOF {
			if len(line) == 0 {
				return Frame{}, io.EOF
			}
			return Frame{}, ErrEmptyFrame
		}
		if err != bufio.ErrBufferFull {
			return Frame{}, fmt.Errorf("proto: read frame: %w", err)
		}
		// No newline yet; give up as soon as the accumulated bytes
		// cannot be a legal frame anymore.
		if r.limit > 0 && len(line) > r.limit+1 {
			return Frame{}, ErrFrameTooLarge
		}
	}

	line = line[:len(line)-1] // strip the newline
	if len(line) == 0 {
		return Frame{}, ErrEmptyFrame
	}
	if r.limit > 0 && len(line)-1 > r.limit {
		return Frame{}, ErrFrameTooLarge
	}

	cmd := Command(line[0])
	if !cmd.Valid() {
		return Frame{}, ErrInvalidCommand
	}
	payload := string(line[1:])
	if payload == "" {
		return Frame{}, ErrEmptyFrame
	}
	return Frame{Command: cmd, Payload: payload}, nil
}

// Write encodes a frame onto w. The payload must not contain a newline.
func Write(w io.Writer, f Frame) error {
	if strings.ContainsRune(f.Payload, '\n') {
		return fmt.Errorf("proto: payload contains newline")
	}
	buf := make([]byte, 0, len(f.Payload)+2)
	buf = append(buf, byte(f.Command))
	buf = append(buf, f.Payload...)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("proto: write frame: %w", err)
	}
	return nil
}
