package protocol_test

import (
	"errors"
	"testing"

	"github.com/omochice/simple-socket/pkg/protocol"
)

// recordingPeer captures replies written to it.
type recordingPeer struct {
	written  [][]byte
	writeErr error
}

func (p *recordingPeer) Write(data []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	p.written = append(p.written, copied)
	return len(data), nil
}

func (p *recordingPeer) RemoteAddr() string {
	return "127.0.0.1:4242"
}

func TestMessage_String(t *testing.T) {
	msg := protocol.NewMessage([]byte("hello"), nil, protocol.DefaultCodec())

	if got := msg.String(); got != "hello" {
		t.Errorf("String() = %q, want %q", got, "hello")
	}
	if got := msg.Delimiter(); got != protocol.DefaultDelimiter {
		t.Errorf("Delimiter() = %#x, want %#x", got, protocol.DefaultDelimiter)
	}
	if got := msg.RemoteAddr(); got != "" {
		t.Errorf("RemoteAddr() = %q, want empty", got)
	}
}

func TestMessage_ReplyLine(t *testing.T) {
	peer := &recordingPeer{}
	msg := protocol.NewMessage([]byte("ping"), peer, protocol.DefaultCodec())

	if err := msg.ReplyLine("pong"); err != nil {
		t.Fatalf("ReplyLine() error = %v", err)
	}
	if err := msg.ReplyLine(""); err != nil {
		t.Fatalf("ReplyLine(\"\") error = %v", err)
	}
	if err := msg.ReplyString("raw"); err != nil {
		t.Fatalf("ReplyString() error = %v", err)
	}

	if len(peer.written) != 2 {
		t.Fatalf("written %d replies, want 2", len(peer.written))
	}
	if string(peer.written[0]) != "pong\x13" {
		t.Errorf("first reply = %q, want %q", peer.written[0], "pong\x13")
	}
	if string(peer.written[1]) != "raw" {
		t.Errorf("second reply = %q, want %q", peer.written[1], "raw")
	}
	if msg.RemoteAddr() != "127.0.0.1:4242" {
		t.Errorf("RemoteAddr() = %q", msg.RemoteAddr())
	}
}

func TestMessage_ReplyErrors(t *testing.T) {
	msg := protocol.NewMessage([]byte("x"), nil, protocol.DefaultCodec())
	if err := msg.Reply([]byte("y")); err == nil {
		t.Error("expected error replying without a peer")
	}

	writeErr := errors.New("broken pipe")
	msg = protocol.NewMessage([]byte("x"), &recordingPeer{writeErr: writeErr}, protocol.DefaultCodec())
	if err := msg.Reply([]byte("y")); !errors.Is(err, writeErr) {
		t.Errorf("Reply() error = %v, want wrapping %v", err, writeErr)
	}
}
