// Package metrics counts connection and framing activity in Prometheus
// text format.
package metrics

import (
	"fmt"
	"io"

	vm "github.com/VictoriaMetrics/metrics"
)

// Recorder holds the counters of one server or client instance.
type Recorder struct {
	set *vm.Set

	connected    *vm.Counter
	disconnected *vm.Counter
	frames       *vm.Counter
	bursts       *vm.Counter
	bytesRead    *vm.Counter
	faults       *vm.Counter
}

// New creates a Recorder whose series carry the label role="<role>".
func New(role string) *Recorder {
	set := vm.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`simplesocket_%s{role=%q}`, metric, role)
	}

	return &Recorder{
		set:          set,
		connected:    set.GetOrCreateCounter(name("peers_connected_total")),
		disconnected: set.GetOrCreateCounter(name("peers_disconnected_total")),
		frames:       set.GetOrCreateCounter(name("frames_total")),
		bursts:       set.GetOrCreateCounter(name("bursts_total")),
		bytesRead:    set.GetOrCreateCounter(name("bytes_read_total")),
		faults:       set.GetOrCreateCounter(name("loop_faults_total")),
	}
}

// Connected counts a new peer. Every method is a no-op on a nil Recorder.
func (r *Recorder) Connected() {
	if r != nil {
		r.connected.Inc()
	}
}

func (r *Recorder) Disconnected() {
	if r != nil {
		r.disconnected.Inc()
	}
}

func (r *Recorder) Frame() {
	if r != nil {
		r.frames.Inc()
	}
}

func (r *Recorder) Burst() {
	if r != nil {
		r.bursts.Inc()
	}
}

func (r *Recorder) BytesRead(n int) {
	if r != nil && n > 0 {
		r.bytesRead.Add(n)
	}
}

func (r *Recorder) Fault() {
	if r != nil {
		r.faults.Inc()
	}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Connected    uint64
	Disconnected uint64
	Frames       uint64
	Bursts       uint64
	BytesRead    uint64
	Faults       uint64
}

// Snapshot returns the current counter values.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		Connected:    r.connected.Get(),
		Disconnected: r.disconnected.Get(),
		Frames:       r.frames.Get(),
		Bursts:       r.bursts.Get(),
		BytesRead:    r.bytesRead.Get(),
		Faults:       r.faults.Get(),
	}
}

// WritePrometheus writes the counters in Prometheus text exposition format.
func (r *Recorder) WritePrometheus(w io.Writer) {
	if r != nil {
		r.set.WritePrometheus(w)
	}
}
