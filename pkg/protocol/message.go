package protocol

import "fmt"

// Peer is the connection a message arrived on. Replies are written back
// through it.
type Peer interface {
	Write(p []byte) (int, error)
	RemoteAddr() string
}

// Message is a completed frame: the payload bytes without the delimiter, the
// peer that sent them and the codec in effect when the frame was completed.
type Message struct {
	Data []byte
	Peer Peer

	codec Codec
}

// NewMessage creates a message. data must not be modified afterwards.
func NewMessage(data []byte, peer Peer, codec Codec) *Message {
	return &Message{
		Data:  data,
		Peer:  peer,
		codec: codec,
	}
}

// String returns the payload decoded with the message's codec.
func (m *Message) String() string {
	return m.codec.Decode(m.Data)
}

// Delimiter returns the delimiter that was in effect when the message was created.
func (m *Message) Delimiter() byte {
	return m.codec.Delimiter
}

// RemoteAddr returns the address of the sending peer.
func (m *Message) RemoteAddr() string {
	if m.Peer == nil {
		return ""
	}
	return m.Peer.RemoteAddr()
}

// Reply writes raw bytes back to the sending peer.
func (m *Message) Reply(data []byte) error {
	if m.Peer == nil {
		return fmt.Errorf("message has no peer to reply to")
	}
	if _, err := m.Peer.Write(data); err != nil {
		return fmt.Errorf("failed to reply to %s: %w", m.Peer.RemoteAddr(), err)
	}
	return nil
}

// ReplyString encodes text and writes it back to the sending peer.
// Empty text is ignored.
func (m *Message) ReplyString(text string) error {
	if text == "" {
		return nil
	}
	data, err := m.codec.Encode(text)
	if err != nil {
		return err
	}
	return m.Reply(data)
}

// ReplyLine writes text terminated by the delimiter back to the sending peer.
// Empty text is ignored.
func (m *Message) ReplyLine(text string) error {
	data, err := m.codec.Line(text)
	if err != nil || data == nil {
		return err
	}
	return m.Reply(data)
}
