package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/thunderlink/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// chunkedConn hands out at most chunk bytes per Read.
type chunkedConn struct {
	net.Conn
	r     *bytes.Reader
	chunk int
	reads int
}

func (c *chunkedConn) Read(b []byte) (int, error) {
	c.reads++
	if len(b) > c.chunk {
		b = b[:c.chunk]
	}
	return c.r.Read(b)
}

func frameOf(t *testing.T, m message.Message) []byte {
	t.Helper()
	data, err := message.Marshal(m)
	require.NoError(t, err)
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)
	return frame
}

func TestFrameConnRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	writer := NewFrameConn(a, time.Second)
	reader := NewFrameConn(b, time.Second)

	sent := []message.Message{
		&message.HandshakeInitial{EphemeralPublicKey: [32]byte{1, 2, 3}},
		&message.Encrypted{Ciphertext: bytes.Repeat([]byte{0xab}, 4096)},
	}

	go func() {
		for _, m := range sent {
			if err := writer.WriteMessage(m); err != nil {
				return
			}
		}
	}()

	for _, want := range sent {
		got, err := reader.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFrameConnPartialReads(t *testing.T) {
	var stream []byte
	stream = append(stream, frameOf(t, &message.Ping{Nonce: 1})...)
	stream = append(stream, frameOf(t, &message.Encrypted{Ciphertext: []byte("partial reads")})...)

	for _, chunk := range []int{1, 2, 3, 7} {
		conn := &chunkedConn{r: bytes.NewReader(stream), chunk: chunk}
		fc := NewFrameConn(conn, 0)

		m, err := fc.ReadMessage()
		require.NoError(t, err, "chunk %d", chunk)
		assert.Equal(t, &message.Ping{Nonce: 1}, m)

		m, err = fc.ReadMessage()
		require.NoError(t, err, "chunk %d", chunk)
		assert.Equal(t, &message.Encrypted{Ciphertext: []byte("partial reads")}, m)

		_, err = fc.ReadMessage()
		assert.ErrorIs(t, err, io.EOF)
		assert.Greater(t, conn.reads, 2)
	}
}

func TestFrameConnRejectsBadFrames(t *testing.T) {
	tests := []struct {
		name    string
		stream  []byte
		wantErr error
	}{
		{
			name:    "empty frame",
			stream:  []byte{0, 0, 0, 0},
			wantErr: ErrEmptyFrame,
		},
		{
			name:    "oversized frame",
			stream:  []byte{0xff, 0xff, 0xff, 0xff},
			wantErr: ErrFrameTooLarge,
		},
		{
			name:    "truncated body",
			stream:  []byte{0, 0, 0, 9, byte(message.TypePing), 0, 0},
			wantErr: io.ErrUnexpectedEOF,
		},
		{
			name:    "unknown type",
			stream:  []byte{0, 0, 0, 1, 0xee},
			wantErr: message.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := NewFrameConn(&chunkedConn{r: bytes.NewReader(tt.stream), chunk: 64}, 0)
			_, err := fc.ReadMessage()
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestFrameConnReadLimiter(t *testing.T) {
	frame := frameOf(t, &message.Encrypted{Ciphertext: make([]byte, 100)})
	stream := append(append([]byte{}, frame...), frame...)

	fc := NewFrameConn(&chunkedConn{r: bytes.NewReader(stream), chunk: 64}, 0)
	fc.SetReadLimiter(rate.NewLimiter(0, len(frame)))

	_, err := fc.ReadMessage()
	require.NoError(t, err)

	_, err = fc.ReadMessage()
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTargetAddress(t *testing.T) {
	assert.Equal(t, "10.0.0.2:2204", Target{Host: "10.0.0.2", Port: 2204}.Address())
	assert.Equal(t, "[::1]:2204", Target{Host: "::1", Port: 2204}.Address())

	id := Target{Host: "node.example", Port: 9, NodeKey: []byte{0xaa}}.Identity()
	assert.Equal(t, "node.example", id.Host)
	assert.Equal(t, 9, id.Port)
	assert.Equal(t, []byte{0xaa}, id.NodeKey)
}

func TestIdentityFromAddr(t *testing.T) {
	id := identityFromAddr(&net.TCPAddr{IP: net.IPv4(192, 168, 1, 5), Port: 4000})
	assert.Equal(t, "192.168.1.5", id.Host)
	assert.Equal(t, 4000, id.Port)

	assert.Equal(t, "", identityFromAddr(nil).Host)
}
