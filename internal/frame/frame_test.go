package frame_test

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/omochice/simple-socket/internal/frame"
)

// chunkConn hands out its chunks one Available/Read round at a time, the way
// bytes trickle in from a socket.
type chunkConn struct {
	addr    string
	chunks  [][]byte
	readErr error
}

func (c *chunkConn) Available() (int, error) {
	if len(c.chunks) == 0 {
		return 0, nil
	}
	return len(c.chunks[0]), nil
}

func (c *chunkConn) Alive() bool { return true }

func (c *chunkConn) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if len(c.chunks[0]) == 0 {
		c.chunks = c.chunks[1:]
	}
	if c.readErr != nil && len(c.chunks) == 0 {
		return n, c.readErr
	}
	return n, nil
}

func (c *chunkConn) Write(p []byte) (int, error) { return len(p), nil }
func (c *chunkConn) Close() error                { return nil }
func (c *chunkConn) RemoteAddr() string          { return c.addr }

const delim = 0x13

func collect(t *testing.T, conn *chunkConn, asm *frame.Assembler) ([]string, []byte) {
	t.Helper()
	var frames []string
	read, err := frame.Drain(conn, asm, delim, func(payload []byte) {
		frames = append(frames, string(payload))
	})
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	return frames, read
}

func TestDrain_ReassemblesAcrossChunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
	}{
		{
			name:   "single frame",
			chunks: []string{"hello\x13"},
			want:   []string{"hello"},
		},
		{
			name:   "frame split across reads",
			chunks: []string{"he", "ll", "o\x13"},
			want:   []string{"hello"},
		},
		{
			name:   "several frames in one read",
			chunks: []string{"a\x13bb\x13ccc\x13"},
			want:   []string{"a", "bb", "ccc"},
		},
		{
			name:   "empty frame between delimiters",
			chunks: []string{"a\x13\x13b\x13"},
			want:   []string{"a", "", "b"},
		},
		{
			name:   "delimiter on chunk boundary",
			chunks: []string{"one", "\x13", "two\x13"},
			want:   []string{"one", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &chunkConn{addr: "10.0.0.1:1"}
			for _, c := range tt.chunks {
				conn.chunks = append(conn.chunks, []byte(c))
			}
			asm := frame.NewAssembler()

			frames, read := collect(t, conn, asm)

			if len(frames) != len(tt.want) {
				t.Fatalf("frames = %q, want %q", frames, tt.want)
			}
			for i := range tt.want {
				if frames[i] != tt.want[i] {
					t.Errorf("frame %d = %q, want %q", i, frames[i], tt.want[i])
				}
			}
			if want := []byte(joinChunks(tt.chunks)); !bytes.Equal(read, want) {
				t.Errorf("read = %q, want %q", read, want)
			}
			if frame.EndsPartial(asm, conn.addr, read) {
				t.Error("EndsPartial() = true for a fully delimited pass")
			}
		})
	}
}

func joinChunks(chunks []string) string {
	var s string
	for _, c := range chunks {
		s += c
	}
	return s
}

func TestDrain_PartialCarriesOverToNextPass(t *testing.T) {
	asm := frame.NewAssembler()
	conn := &chunkConn{addr: "10.0.0.1:1", chunks: [][]byte{[]byte("done\x13part")}}

	frames, read := collect(t, conn, asm)
	if len(frames) != 1 || frames[0] != "done" {
		t.Fatalf("first pass frames = %q", frames)
	}
	if !frame.EndsPartial(asm, conn.addr, read) {
		t.Error("EndsPartial() = false with a pending partial message")
	}
	if got := asm.Pending(conn.addr); got != 4 {
		t.Errorf("Pending() = %d, want 4", got)
	}

	conn.chunks = [][]byte{[]byte("ial\x13")}
	frames, _ = collect(t, conn, asm)
	if len(frames) != 1 || frames[0] != "partial" {
		t.Errorf("second pass frames = %q, want [partial]", frames)
	}
}

func TestAssembler_PeersAreIsolated(t *testing.T) {
	asm := frame.NewAssembler()
	a := &chunkConn{addr: "10.0.0.1:1", chunks: [][]byte{[]byte("AAA")}}
	b := &chunkConn{addr: "10.0.0.2:2", chunks: [][]byte{[]byte("BBB")}}

	collect(t, a, asm)
	collect(t, b, asm)

	a.chunks = [][]byte{[]byte("aaa\x13")}
	b.chunks = [][]byte{[]byte("bbb\x13")}

	framesB, _ := collect(t, b, asm)
	framesA, _ := collect(t, a, asm)

	if len(framesA) != 1 || framesA[0] != "AAAaaa" {
		t.Errorf("peer A frames = %q, want [AAAaaa]", framesA)
	}
	if len(framesB) != 1 || framesB[0] != "BBBbbb" {
		t.Errorf("peer B frames = %q, want [BBBbbb]", framesB)
	}
	if asm.Peers() != 2 {
		t.Errorf("Peers() = %d, want 2", asm.Peers())
	}

	asm.Forget(a.addr)
	if asm.Peers() != 1 {
		t.Errorf("Peers() after Forget = %d, want 1", asm.Peers())
	}
}

func TestAssembler_TakeAndClear(t *testing.T) {
	asm := frame.NewAssembler()

	if got := asm.TakeAndClear("nobody"); got == nil || len(got) != 0 {
		t.Errorf("TakeAndClear() on unknown peer = %v, want empty slice", got)
	}

	asm.Append("p", 'x')
	first := asm.TakeAndClear("p")
	asm.Append("p", 'y')
	second := asm.TakeAndClear("p")

	if string(first) != "x" || string(second) != "y" {
		t.Errorf("TakeAndClear() = %q, %q; want x, y (buffers must not be reused)", first, second)
	}
}

func TestDrain_ReturnsReadError(t *testing.T) {
	boom := errors.New("connection reset")
	conn := &chunkConn{addr: "10.0.0.1:1", chunks: [][]byte{[]byte("x\x13y")}, readErr: boom}
	asm := frame.NewAssembler()

	var frames []string
	read, err := frame.Drain(conn, asm, delim, func(p []byte) { frames = append(frames, string(p)) })

	if !errors.Is(err, boom) {
		t.Errorf("Drain() error = %v, want %v", err, boom)
	}
	if string(read) != "x\x13y" {
		t.Errorf("read = %q, want bytes read before the error", read)
	}
	if len(frames) != 1 || frames[0] != "x" {
		t.Errorf("frames = %q, want [x]", frames)
	}
}
