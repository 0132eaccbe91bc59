package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/opd-ai/thunderlink/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestListenRequiresFactory(t *testing.T) {
	_, err := Listen("127.0.0.1:0", nil)
	assert.Error(t, err)
}

func TestListenerAcceptsAsResponder(t *testing.T) {
	server := newAppFactory()
	accepted := make(chan *pipeline.Pipeline, 1)
	metrics := &countingConnMetrics{}
	_, target := startListener(t, server.layers,
		WithOnConnection(func(p *pipeline.Pipeline) { accepted <- p }),
		WithConnectionMetrics(metrics))

	client := newAppFactory()
	c := NewClient(client.layers)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.ConnectTo(ctx, target, ListenerFuncs{})

	select {
	case p := <-accepted:
		assert.Equal(t, peer.Responder, p.Session().Role())
		assert.Equal(t, "127.0.0.1", p.Session().Identity().Host)
	case <-time.After(testTimeout):
		t.Fatal("listener did not accept")
	}

	waitReady(t, server.nextApp(t))
	assert.Equal(t, int32(1), metrics.opened.Load())
}

func TestListenerRejectsAboveAcceptRate(t *testing.T) {
	server := newAppFactory()
	metrics := &countingConnMetrics{}
	_, target := startListener(t, server.layers,
		WithAcceptRate(0, 1),
		WithConnectionMetrics(metrics))

	first, err := net.Dial("tcp", target.Address())
	require.NoError(t, err)
	defer first.Close()
	server.nextApp(t)

	second, err := net.Dial("tcp", target.Address())
	require.NoError(t, err)
	defer second.Close()

	// The rejected connection is closed without a word.
	require.NoError(t, second.SetReadDeadline(time.Now().Add(testTimeout)))
	buf := make([]byte, 1)
	_, err = second.Read(buf)
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return metrics.rejected.Load() == 1 },
		testTimeout, 10*time.Millisecond)
	assert.Len(t, server.apps, 0)
}

func TestListenerDisconnectsPeerAboveReadRate(t *testing.T) {
	server := newAppFactory()
	accepted := make(chan *pipeline.Pipeline, 1)
	// Room for the handshake frame but not for the frame after it.
	_, target := startListener(t, server.layers,
		WithOnConnection(func(p *pipeline.Pipeline) { accepted <- p }),
		WithReadRate(rate.Limit(1), 200))

	client := newAppFactory()
	rec := newRecordingListener()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	NewClient(client.layers).ConnectTo(ctx, target, rec)

	var clientPipe, serverPipe *pipeline.Pipeline
	select {
	case clientPipe = <-rec.pipelines:
	case <-time.After(testTimeout):
		t.Fatal("no success notification")
	}
	select {
	case serverPipe = <-accepted:
	case <-time.After(testTimeout):
		t.Fatal("listener did not accept")
	}
	waitReady(t, client.nextApp(t))

	sendCtx, sendCancel := context.WithTimeout(ctx, testTimeout)
	defer sendCancel()
	require.NoError(t, clientPipe.Send(sendCtx, &message.Data{Seq: 1, Body: make([]byte, 150)}))

	select {
	case <-serverPipe.Done():
	case <-time.After(testTimeout):
		t.Fatal("server kept a connection above its read rate")
	}
	serverPipe.Wait()
	assert.ErrorIs(t, serverPipe.Err(), ErrRateLimited)

	select {
	case <-clientPipe.Done():
	case <-time.After(testTimeout):
		t.Fatal("client connection stayed open")
	}
	assert.Empty(t, server.inbound)
}

func TestListenerCloseEndsConnections(t *testing.T) {
	server := newAppFactory()
	accepted := make(chan *pipeline.Pipeline, 1)
	ln, target := startListener(t, server.layers,
		WithOnConnection(func(p *pipeline.Pipeline) { accepted <- p }),
		WithAcceptRate(rate.Inf, 1))

	conn, err := net.Dial("tcp", target.Address())
	require.NoError(t, err)
	defer conn.Close()

	var p *pipeline.Pipeline
	select {
	case p = <-accepted:
	case <-time.After(testTimeout):
		t.Fatal("listener did not accept")
	}

	require.NoError(t, ln.Close())
	select {
	case <-p.Done():
	default:
		t.Fatal("Close returned with a live connection")
	}
	assert.NoError(t, ln.Close())
}

func TestServeStopsOnContextCancel(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", newAppFactory().layers)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ln.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return")
	}
}
