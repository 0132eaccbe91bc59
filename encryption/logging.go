package encryption

import (
	"strconv"

	"github.com/opd-ai/thunderlink/message"
	"github.com/sirupsen/logrus"
)

const (
	directionInbound  = "I"
	directionOutbound = "O"
)

// logRelay writes the per-message diagnostic line:
//
//	I: <seq> <acked> <peer> <message>[<size KB>]
//
// A number the message does not carry is written as "-".
// Gossip lines omit the numbers and are only written when LogGossip is set.
func (p *Processor) logRelay(direction string, m message.Message, encryptedSize int) {
	if !p.config.LogMessages {
		return
	}

	sizeKB := encryptedSize / 1024
	gossip := message.IsGossip(m)
	if gossip && !p.config.LogGossip {
		return
	}

	entry := p.logger.WithFields(logrus.Fields{
		"direction": direction,
		"peer":      p.displayName(),
		"type":      m.Type().String(),
		"size_kb":   sizeKB,
	})

	if gossip {
		entry.Debugf("%s: %s %s[%d]", direction, p.displayName(), m, sizeKB)
		return
	}

	seqText, ackedText := "-", "-"
	if seq, ok := message.Sequence(m); ok {
		entry = entry.WithField("seq", seq)
		seqText = strconv.FormatUint(seq, 10)
	}
	if acked, ok := message.AckedSequence(m); ok {
		entry = entry.WithField("acked_seq", acked)
		ackedText = strconv.FormatUint(acked, 10)
	}
	entry.Debugf("%s: %s %s %s %s[%d]", direction, seqText, ackedText, p.displayName(), m, sizeKB)
}
