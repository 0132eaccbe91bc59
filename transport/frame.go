package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/opd-ai/thunderlink/message"
	"golang.org/x/time/rate"
)

// frameHeaderSize is the length prefix in front of every frame.
const frameHeaderSize = 4

var (
	// ErrFrameTooLarge indicates a frame length above message.MaxSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
	// ErrEmptyFrame indicates a zero-length frame.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrRateLimited indicates the peer sent more bytes than its read limiter allows.
	ErrRateLimited = errors.New("inbound rate limit exceeded")
)

// FrameConn reads and writes length-prefixed messages on a net.Conn.
// ReadMessage must only be called from one goroutine; WriteMessage is safe
// for concurrent use.
type FrameConn struct {
	conn         net.Conn
	writeTimeout time.Duration
	limiter      *rate.Limiter

	header  [frameHeaderSize]byte
	writeMu sync.Mutex
}

// NewFrameConn wraps conn. A zero writeTimeout disables write deadlines.
func NewFrameConn(conn net.Conn, writeTimeout time.Duration) *FrameConn {
	return &FrameConn{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

// SetReadLimiter bounds the inbound byte rate, header included. A nil
// limiter removes the bound.
func (f *FrameConn) SetReadLimiter(l *rate.Limiter) {
	f.limiter = l
}

// ReadMessage reads one frame and decodes it.
func (f *FrameConn) ReadMessage() (message.Message, error) {
	if _, err := io.ReadFull(f.conn, f.header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(f.header[:])
	if length == 0 {
		return nil, ErrEmptyFrame
	}
	if length > message.MaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	if f.limiter != nil && !f.limiter.AllowN(time.Now(), frameHeaderSize+int(length)) {
		return nil, ErrRateLimited
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(f.conn, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading frame body: %w", err)
	}

	return message.Unmarshal(data)
}

// WriteMessage encodes m and writes it as one frame.
func (f *FrameConn) WriteMessage(m message.Message) error {
	data, err := message.Marshal(m)
	if err != nil {
		return err
	}
	frame := make([]byte, frameHeaderSize+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[frameHeaderSize:], data)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if f.writeTimeout > 0 {
		if err := f.conn.SetWriteDeadline(time.Now().Add(f.writeTimeout)); err != nil {
			return err
		}
	}
	_, err = f.conn.Write(frame)
	return err
}

// RemoteAddr returns the address of the peer.
func (f *FrameConn) RemoteAddr() net.Addr { return f.conn.RemoteAddr() }

// Close closes the underlying connection.
func (f *FrameConn) Close() error { return f.conn.Close() }
