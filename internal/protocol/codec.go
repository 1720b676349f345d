package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// frameDelimiter terminates every control frame. Payload bytes following a
// frame are raw and carry no delimiter.
const frameDelimiter = '\n'

// readBufferSize is the buffer used for frame and payload reads. Frames are
// small; payload copies reuse the same buffer.
const readBufferSize = 32 * 1024

// Codec frames control messages over a single stream and moves the raw
// payload bytes that follow a frame when one is declared. All reads go
// through one buffered reader, so bytes buffered past a frame boundary are
// still delivered to the payload reader in order.
type Codec struct {
	r *bufio.Reader
	w io.Writer
}

// NewCodec creates a codec over rw, which is typically a net.Conn.
func NewCodec(rw io.ReadWriter) *Codec {
	return &Codec{
		r: bufio.NewReaderSize(rw, readBufferSize),
		w: rw,
	}
}

// ReadMessage blocks until one complete frame is available and decodes it.
// A frame that is not valid JSON, or that does not match a known control
// message shape, yields an error wrapping ErrProtocol. Transport errors
// (EOF, timeouts, resets) pass through unchanged.
func (c *Codec) ReadMessage() (*Message, error) {
	line, err := c.r.ReadBytes(frameDelimiter)
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return nil, fmt.Errorf("%w: truncated frame", ErrProtocol)
		}
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// WriteMessage encodes msg as one delimited frame and writes it in a single
// call so the frame is never interleaved with payload bytes.
func (c *Codec) WriteMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	data = append(data, frameDelimiter)
	if _, err := c.w.Write(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// PayloadReader returns a reader that delivers exactly n raw payload bytes
// following the last decoded frame. Reading past n yields io.EOF; the codec
// never consumes stream bytes beyond the declared count.
func (c *Codec) PayloadReader(n int64) io.Reader {
	return io.LimitReader(c.r, n)
}

// ReadPayload copies exactly n payload bytes into dst, across as many network
// reads as the stream requires. A stream that ends early yields
// ErrShortPayload.
func (c *Codec) ReadPayload(dst io.Writer, n int64) error {
	copied, err := io.CopyN(dst, c.r, n)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: got %d of %d bytes", ErrShortPayload, copied, n)
		}
		return fmt.Errorf("failed to read payload: %w", err)
	}
	return nil
}

// WritePayload copies exactly n bytes from src to the stream. A source that
// ends early yields ErrShortPayload.
func (c *Codec) WritePayload(src io.Reader, n int64) error {
	written, err := io.CopyN(c.w, src, n)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%w: source provided %d of %d bytes", ErrShortPayload, written, n)
		}
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// PayloadWriter exposes the raw stream for chunked payload writes, letting
// callers interleave progress reporting with the copy loop.
func (c *Codec) PayloadWriter() io.Writer {
	return c.w
}
