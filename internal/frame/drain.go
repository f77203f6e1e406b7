package frame

import (
	"github.com/omochice/simple-socket/internal/peer"
)

// Drain reads every byte conn has available, appending each to the peer's
// buffer in asm. Whenever the delimiter arrives, onFrame is called with the
// buffered payload (delimiter excluded) before any further byte is read.
//
// It returns every byte read during the pass, delimiters included, and the
// error that ended it early, if any.
func Drain(conn peer.Conn, asm *Assembler, delimiter byte, onFrame func(payload []byte)) ([]byte, error) {
	key := conn.RemoteAddr()
	var read []byte

	for {
		n, err := conn.Available()
		if err != nil {
			return read, err
		}
		if n == 0 {
			return read, nil
		}
		if n > len(asm.scratch) {
			n = len(asm.scratch)
		}

		got, err := conn.Read(asm.scratch[:n])
		for _, b := range asm.scratch[:got] {
			read = append(read, b)
			if b == delimiter {
				onFrame(asm.TakeAndClear(key))
				continue
			}
			asm.Append(key, b)
		}
		if err != nil {
			return read, err
		}
		if got == 0 {
			return read, nil
		}
	}
}

// EndsPartial reports whether a pass that read bytes left the peer with a
// partial message, i.e. whether the pass should also be reported as a raw burst.
func EndsPartial(asm *Assembler, peer string, read []byte) bool {
	return len(read) > 0 && asm.Pending(peer) > 0
}
