package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/anirudhraja/structlite/deferred"
	"github.com/anirudhraja/structlite/internal/logging"
)

// Source is the byte source a struct deserializes from. It keeps a single
// read cursor. ReadExactly returns the next n bytes, resolved immediately
// when they are already buffered and pending otherwise. A source that ends
// before any requested byte is available rejects with ErrSourceExhausted;
// one that ends part way through a request rejects with
// io.ErrUnexpectedEOF.
//
// A Source is owned by one deserialize call at a time.
type Source interface {
	ReadExactly(n int) deferred.Value[[]byte]
}

// exhausted builds the rejection for a source that ended with have of the
// want requested bytes available
func exhausted(want, have int, cause error) error {
	if have == 0 {
		if cause != nil {
			return fmt.Errorf("%w: %w", ErrSourceExhausted, cause)
		}
		return ErrSourceExhausted
	}
	return fmt.Errorf("need %d bytes, have %d: %w", want, have, io.ErrUnexpectedEOF)
}

func invalidCount(n int) error {
	return newFieldError(ErrInvalidValue, "negative read count %d", n)
}

// ===== IN-MEMORY SOURCE =====

// BufferSource reads from a byte slice. Every request settles immediately.
type BufferSource struct {
	buf []byte
	pos int
}

// NewBufferSource creates a source over data
func NewBufferSource(data []byte) *BufferSource {
	return &BufferSource{buf: data}
}

// ReadExactly returns the next n bytes. The returned slice aliases the
// source buffer.
func (s *BufferSource) ReadExactly(n int) deferred.Value[[]byte] {
	if n < 0 {
		return deferred.Rejected[[]byte](invalidCount(n))
	}
	if n == 0 {
		return deferred.Resolved([]byte{})
	}
	remaining := len(s.buf) - s.pos
	if remaining < n {
		return deferred.Rejected[[]byte](exhausted(n, remaining, nil))
	}
	b := s.buf[s.pos : s.pos+n : s.pos+n]
	s.pos += n
	return deferred.Resolved(b)
}

// Remaining returns the number of unread bytes
func (s *BufferSource) Remaining() int {
	return len(s.buf) - s.pos
}

// Pos returns the read cursor
func (s *BufferSource) Pos() int {
	return s.pos
}

// ===== READER SOURCE =====

// ReaderSource reads from an io.Reader, blocking inside ReadExactly.
type ReaderSource struct {
	r io.Reader
}

// NewReaderSource creates a source over r
func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{r: r}
}

// ReadExactly reads n bytes from the reader. The buffer grows with the
// bytes actually read, so a corrupt length cannot force a large allocation
// before the reader runs dry.
func (s *ReaderSource) ReadExactly(n int) deferred.Value[[]byte] {
	if n < 0 {
		return deferred.Rejected[[]byte](invalidCount(n))
	}
	if n == 0 {
		return deferred.Resolved([]byte{})
	}
	var buf bytes.Buffer
	read, err := io.CopyN(&buf, s.r, int64(n))
	switch {
	case err == nil:
		return deferred.Resolved(buf.Bytes())
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return deferred.Rejected[[]byte](exhausted(n, int(read), nil))
	default:
		return deferred.Rejected[[]byte](fmt.Errorf("read %d bytes: %w", n, err))
	}
}

// ===== STREAM SOURCE =====

// StreamSource is fed by a transport that delivers chunks as they arrive
// (for example one USB bulk transfer at a time). Requests that can be served
// from buffered chunks resolve immediately; otherwise the request stays
// pending until enough bytes are pushed or the stream is closed.
//
// Push and Close may be called from a different goroutine than the reader.
// Continuations of a pending request run on the goroutine that calls Push
// or Close.
type StreamSource struct {
	mu       sync.Mutex
	buf      []byte
	closed   bool
	closeErr error
	want     int
	pending  *deferred.Promise[[]byte]
}

// NewStreamSource creates an empty, open stream
func NewStreamSource() *StreamSource {
	return &StreamSource{}
}

// ReadExactly returns the next n bytes
func (s *StreamSource) ReadExactly(n int) deferred.Value[[]byte] {
	if n < 0 {
		return deferred.Rejected[[]byte](invalidCount(n))
	}

	s.mu.Lock()
	if s.pending != nil {
		s.mu.Unlock()
		return deferred.Rejected[[]byte](ErrConcurrentRead)
	}
	if len(s.buf) >= n {
		b := s.take(n)
		s.mu.Unlock()
		return deferred.Resolved(b)
	}
	if s.closed {
		err := exhausted(n, len(s.buf), s.closeErr)
		s.mu.Unlock()
		return deferred.Rejected[[]byte](err)
	}

	p := deferred.NewPromise[[]byte]()
	s.pending = p
	s.want = n
	buffered := len(s.buf)
	s.mu.Unlock()

	logging.Debug(logging.ComponentSource, "read suspended", "want", n, "buffered", buffered)
	return p.Value()
}

// Push appends a chunk delivered by the transport
func (s *StreamSource) Push(chunk []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSourceClosed
	}
	s.buf = append(s.buf, chunk...)

	if s.pending == nil || len(s.buf) < s.want {
		s.mu.Unlock()
		return nil
	}
	p := s.pending
	b := s.take(s.want)
	s.pending = nil
	s.want = 0
	s.mu.Unlock()

	p.Resolve(b)
	return nil
}

// Close ends the stream. A pending request is rejected.
func (s *StreamSource) Close() {
	s.CloseWithError(nil)
}

// CloseWithError ends the stream, recording err as the cause of exhaustion
func (s *StreamSource) CloseWithError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = err

	p := s.pending
	var reason error
	if p != nil {
		reason = exhausted(s.want, len(s.buf), err)
		s.pending = nil
		s.want = 0
	}
	s.mu.Unlock()

	if p != nil {
		p.Reject(reason)
	}
}

// Buffered returns the number of bytes received but not yet read
func (s *StreamSource) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// take removes n bytes from the front of the buffer; s.mu must be held
func (s *StreamSource) take(n int) []byte {
	b := make([]byte, n)
	copy(b, s.buf[:n])
	s.buf = s.buf[n:]
	if len(s.buf) == 0 {
		s.buf = nil
	}
	return b
}
