package encryption

import (
	"math"
	"testing"

	"github.com/opd-ai/thunderlink/message"
	"github.com/opd-ai/thunderlink/peer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relayLines(f *fixture) []*logrus.Entry {
	var out []*logrus.Entry
	for _, e := range f.logs.AllEntries() {
		if _, ok := e.Data["direction"]; ok {
			out = append(out, e)
		}
	}
	return out
}

func TestRelayLogLine(t *testing.T) {
	f := newFixture(t, peer.Initiator)
	keys := establish(t, f)
	f.logs.Reset()

	f.proc.OnInboundMessage(sealFor(t, &message.Data{Seq: 5, Body: []byte("x")}, keys))
	require.NoError(t, f.proc.OnOutboundMessage(&message.Ack{AckedSeq: 5}))

	lines := relayLines(f)
	require.Len(t, lines, 2)

	assert.Equal(t, logrus.DebugLevel, lines[0].Level)
	assert.Equal(t, "I: 5 - 127.0.0.1 Data{seq=5, 1 bytes}[0]", lines[0].Message)
	assert.Equal(t, uint64(5), lines[0].Data["seq"])
	assert.NotContains(t, lines[0].Data, "acked_seq")

	assert.Equal(t, "O: - 5 127.0.0.1 Ack{acked=5}[0]", lines[1].Message)
}

func TestRelayLogLineFullRangeSequence(t *testing.T) {
	f := newFixture(t, peer.Initiator)
	keys := establish(t, f)
	f.logs.Reset()

	f.proc.OnInboundMessage(sealFor(t, &message.Data{Seq: math.MaxUint64}, keys))

	lines := relayLines(f)
	require.Len(t, lines, 1)
	assert.Equal(t, "I: 18446744073709551615 - 127.0.0.1 Data{seq=18446744073709551615, 0 bytes}[0]", lines[0].Message)
	assert.Equal(t, uint64(math.MaxUint64), lines[0].Data["seq"])
}

func TestRelayLogToggles(t *testing.T) {
	gossip := &message.Gossip{Topic: "node_announcement"}

	tests := []struct {
		name      string
		cfg       Config
		wantLines int
	}{
		{"messages without gossip", Config{LogMessages: true}, 1},
		{"messages and gossip", Config{LogMessages: true, LogGossip: true}, 2},
		{"disabled", Config{}, 0},
		{"gossip flag alone is not enough", Config{LogGossip: true}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, peer.Responder, WithConfig(tt.cfg))
			keys := establish(t, f)
			f.logs.Reset()

			f.proc.OnInboundMessage(sealFor(t, &message.Ping{Nonce: 1}, keys))
			f.proc.OnInboundMessage(sealFor(t, gossip, keys))

			assert.Len(t, relayLines(f), tt.wantLines)
			assert.Len(t, f.exec.app, 2, "logging never changes what is relayed")
		})
	}
}

func TestProtocolViolationLoggedAsWarning(t *testing.T) {
	f := newFixture(t, peer.Responder)
	f.proc.OnLayerActive(f.exec)
	f.logs.Reset()

	f.proc.OnInboundMessage(&message.Ping{})

	entry := f.logs.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "unexpected_message", entry.Data["reason"])
}
