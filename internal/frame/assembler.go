// Package frame reassembles delimiter-terminated messages from raw byte streams.
package frame

// Assembler keeps one partial-message buffer per peer so bytes from different
// peers never mix. It is owned by a single read loop and is not safe for
// concurrent use.
type Assembler struct {
	buffers map[string][]byte
	scratch []byte
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		buffers: make(map[string][]byte),
		scratch: make([]byte, 4096),
	}
}

// Append adds one byte to the peer's partial message, creating the buffer on
// the first byte seen for that peer.
func (a *Assembler) Append(peer string, b byte) {
	a.buffers[peer] = append(a.buffers[peer], b)
}

// TakeAndClear returns the peer's buffered bytes and resets its buffer. The
// returned slice is never reused by the Assembler.
func (a *Assembler) TakeAndClear(peer string) []byte {
	buf := a.buffers[peer]
	a.buffers[peer] = nil
	if buf == nil {
		return []byte{}
	}
	return buf
}

// Pending returns the number of bytes buffered for the peer.
func (a *Assembler) Pending(peer string) int {
	return len(a.buffers[peer])
}

// Forget drops any partial message kept for the peer.
func (a *Assembler) Forget(peer string) {
	delete(a.buffers, peer)
}

// Peers returns how many peers currently have a buffer.
func (a *Assembler) Peers() int {
	return len(a.buffers)
}
